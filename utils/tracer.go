package utils

import (
	"github.com/mwang-dev/friendfeed/utils/dotenv"
	"github.com/mwang-dev/friendfeed/utils/flag"
	Logger "github.com/mwang-dev/friendfeed/utils/log"
	"github.com/sirupsen/logrus"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// InitTracer starts the Datadog tracer for this process. Call CloseTracer on
// shutdown.
func InitTracer() {
	env := "development"
	if dotenv.IsProdEnv() {
		env = "production"
	}

	tracer.Start(
		tracer.WithService(flag.ServiceName),
		tracer.WithEnv(env),
	)

	Logger.Log.WithFields(
		logrus.Fields{"service": flag.ServiceName, "env": env},
	).Info("tracer initialized")
}

// CloseTracer stops the tracer, OK to be closed multiple times.
func CloseTracer() {
	tracer.Stop()
}

/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package
*/

package flag

import (
	"flag"
	"os"
	"strings"
)

const (
	APIServer = "api_server"
)

var (
	IsDevelopment bool
	ServiceName   string
)

func init() {
	flag.BoolVar(&IsDevelopment, "dev", true, "set to true if the current run is for development. default value is true")
	flag.StringVar(&ServiceName, "service", APIServer, "name of the service, attached to logs and traces")
	// Parsing here would abort `go test` binaries: the testing package has
	// not registered its -test.* flags yet at package-init time. Test
	// binaries keep the defaults above; regular binaries parse as before.
	if !strings.HasSuffix(os.Args[0], ".test") {
		flag.Parse()
	}
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mwang-dev/friendfeed/auth"
	"github.com/mwang-dev/friendfeed/eventbus"
	"github.com/mwang-dev/friendfeed/fanout"
	"github.com/mwang-dev/friendfeed/feed"
	"github.com/mwang-dev/friendfeed/filestore"
	"github.com/mwang-dev/friendfeed/ingest"
	"github.com/mwang-dev/friendfeed/server"
	"github.com/mwang-dev/friendfeed/store"
	"github.com/mwang-dev/friendfeed/sweeper"
	"github.com/mwang-dev/friendfeed/utils"
	"github.com/mwang-dev/friendfeed/utils/dotenv"
	. "github.com/mwang-dev/friendfeed/utils/flag"
	Logger "github.com/mwang-dev/friendfeed/utils/log"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

func cleanup() {
	utils.CloseTracer()
	Logger.Log.Info("api server shutdown")
}

func main() {
	defer cleanup()

	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	utils.InitTracer()

	db, err := utils.GetDBConnection()
	if err != nil {
		Logger.Log.Fatal("fail to connect database : ", err)
	}
	utils.DatabaseSetupAndMigration(db)
	docStore := store.NewStore(db)

	authProvider, err := auth.NewCognitoProvider(context.Background())
	if err != nil {
		Logger.Log.Fatal("fail to setup identity provider : ", err)
	}

	files, err := filestore.NewS3FileStore(os.Getenv("IMAGE_BUCKET"))
	if err != nil {
		Logger.Log.Fatal("fail to setup image file store : ", err)
	}

	// Unread-count cache is optional; without redis the read model counts
	// from the database on every poll.
	unread, err := utils.GetUnreadCountStore()
	if err != nil {
		Logger.Log.Warn("redis not available, unread counts are uncached : ", err)
		unread = nil
	}

	bus := eventbus.NewBus()
	defer bus.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Fanout is event driven: the submitting request never waits for it.
	engine := fanout.NewEngine(docStore, docStore, bus)
	if unread != nil {
		engine.Unread = unread
	}
	go func() {
		if err := engine.Run(ctx); err != nil {
			Logger.Log.Error("fanout engine stopped : ", err)
		}
	}()

	go sweeper.NewSweeper(docStore, 0, 0).Run(ctx)

	api := &server.APIServer{
		Users:         docStore,
		Graph:         docStore,
		Posts:         docStore,
		Notifications: docStore,
		Images:        docStore,
		Ingest:        ingest.NewGateway(docStore, bus),
		Feed:          feed.NewAssembler(docStore, docStore),
		Auth:          authProvider,
		Files:         files,
		Unread:        unread,
	}

	// Default With the Logger and Recovery middleware already attached
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(gintrace.Middleware(ServiceName))
	api.RegisterRoutes(router)

	Logger.Log.Info("api server starts up")
	router.Run(":8080")
}

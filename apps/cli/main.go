package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jayalms/lms/client"
	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/identity"
)

func main() {
	logger := log.New(os.Stderr, "LMS : ", log.LstdFlags)

	conf, err := loadConfig()
	if err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cli := newCommandLine(
		client.New(conf.APIURL, &http.Client{Timeout: conf.Timeout}),
		&identity.FileStore{Path: conf.SessionPath},
		core.StdLogger{Std: logger},
		os.Stdin,
		os.Stdout,
	)
	err = cli.run(ctx, os.Args)
	stop()
	if err != nil {
		if err != errHelp {
			logger.Printf("error: %s\n", describe(err, cli.translator))
		}
		os.Exit(1)
	}
}

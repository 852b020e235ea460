// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sigstore/signfile-bridge/cmd/signfile-bridge/cli"
	"github.com/sigstore/signfile-bridge/pkg/signfile"
	"github.com/sigstore/signfile-bridge/pkg/tracing"
)

type ExitCoder interface {
	error
	ExitCode() int
}

// legacyFlags maps the single-dash spellings accepted by the original
// makepk8 and signapk tools to their current form.
var legacyFlags = map[string]string{
	"-pem":     "--pem",
	"-version": "version",
}

func main() {
	log.SetFlags(0)

	for i, arg := range os.Args {
		if arg == "--" {
			break
		}
		if newArg, ok := legacyFlags[arg]; ok {
			log.Printf("warning: %s is deprecated and will be removed in a future release. Please use %s.", arg, newArg)
			os.Args[i] = newArg
		}
	}

	if err := tracing.InitFromEnv(); err != nil {
		log.Printf("warning: tracing disabled: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.New().ExecuteContext(ctx)
	stop()

	if rerr := signfile.RemoveTempFiles(); rerr != nil {
		log.Printf("warning: removing temporary files: %v", rerr)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = tracing.Shutdown(shutdownCtx)
	cancel()

	if err != nil {
		var ec ExitCoder
		if errors.As(err, &ec) {
			log.Printf("error during command execution: %v", err)
			os.Exit(ec.ExitCode())
		}

		log.Fatalf("error during command execution: %v", err)
	}
}

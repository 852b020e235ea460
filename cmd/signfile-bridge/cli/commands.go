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

package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cobracompletefig "github.com/withfig/autocomplete-tools/integrations/cobra"
	"sigs.k8s.io/release-utils/version"

	"github.com/sigstore/signfile-bridge/cmd/signfile-bridge/cli/options"
	"github.com/sigstore/signfile-bridge/pkg/config"
	"github.com/sigstore/signfile-bridge/pkg/logging"
	"github.com/sigstore/signfile-bridge/pkg/signfile"
)

// app carries state shared by the subcommands of one root command.
type app struct {
	ro *options.RootOptions
	v  *viper.Viper
}

func (a *app) logger() logging.Logger {
	return a.ro.NewLogger()
}

func (a *app) config() (*config.Config, error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, usageError(err)
	}
	return cfg, nil
}

func (a *app) client(cfg *config.Config, logger logging.Logger) *signfile.Client {
	return signfile.NewClient(cfg.Signer, signfile.WithLogger(logger))
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.ro.Timeout > 0 {
		return context.WithTimeout(ctx, a.ro.Timeout)
	}
	return context.WithCancel(ctx)
}

func New() *cobra.Command {
	a := &app{ro: &options.RootOptions{}, v: config.NewViper()}

	cmd := &cobra.Command{
		Use:               "signfile-bridge",
		Short:             "RSA signing through a remote SignFile certificate service.",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.v.BindPFlags(cmd.Flags())
		},
	}
	a.ro.AddFlags(cmd)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	cmd.AddCommand(MakePK8())
	cmd.AddCommand(SignAPK(a))
	cmd.AddCommand(Sign(a))
	cmd.AddCommand(version.WithFont("starwars"))
	cmd.AddCommand(cobracompletefig.CreateCompletionSpecCommand())
	return cmd
}

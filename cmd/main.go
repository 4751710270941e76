/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	mobo "github.com/chetanchaudhari789/MOBO-sub001"
	"github.com/chetanchaudhari789/MOBO-sub001/config"
	"github.com/chetanchaudhari789/MOBO-sub001/database"
	"github.com/chetanchaudhari789/MOBO-sub001/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Mobo represents the CLI application, encapsulating the root Cobra command.
type Mobo struct {
	cmd *cobra.Command
}

// moboInstance holds the settlement core instance and its configuration,
// shared by every subcommand.
type moboInstance struct {
	mobo *mobo.Mobo
	cnf  *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the settlement core
// before running any command.
func preRun(app *moboInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("mobo.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newMobo, err := setupMobo(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.mobo = newMobo
		app.cnf = cnf

		return nil
	}
}

// setupMobo creates a new settlement core instance wired to the configured
// data source.
func setupMobo(cfg *config.Configuration) (*mobo.Mobo, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newMobo, err := mobo.NewMobo(db)
	if err != nil {
		return nil, fmt.Errorf("error creating mobo: %v", err)
	}
	return newMobo, nil
}

// NewCLI creates the command-line interface for the application. It sets up
// the root command and the server, worker, migration and backup subcommands.
func NewCLI() *Mobo {
	var configFile string
	b := &moboInstance{}

	var rootCmd = &cobra.Command{
		Use:   "mobo",
		Short: "Cashback order settlement core",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./mobo.json", "Configuration file for the settlement core")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))
	rootCmd.AddCommand(backupCommands(b))
	rootCmd.AddCommand(configCommands())

	return &Mobo{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during
// execution.
func (w Mobo) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}

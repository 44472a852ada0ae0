package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"homesync-go/internal/app"
	"homesync-go/internal/config"
	"homesync-go/internal/model"
	"homesync-go/pkg/log"
)

type options struct {
	configPath string
	params     model.ConnectionParams
	question   string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "homesync",
		Short:         "Chat with your home inventory database from the terminal",
		Long:          `homesync connects to a MySQL database and answers questions about it in natural language.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "./configs/config.yaml", "path to the config file")
	f.StringVar(&opts.params.Host, "host", "", "database host (defaults to config / DB_HOST)")
	f.StringVar(&opts.params.Port, "port", "", "database port (defaults to config / DB_PORT)")
	f.StringVarP(&opts.params.User, "user", "u", "", "database user (defaults to config / DB_USER)")
	f.StringVarP(&opts.params.Password, "password", "p", "", "database password (defaults to config / DB_PASSWORD)")
	f.StringVarP(&opts.params.Database, "database", "d", "", "database name (defaults to config / DB_NAME)")
	f.StringVarP(&opts.question, "query", "q", "", "ask a single question and exit")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")
	return cmd
}

func run(ctx context.Context, opts *options) error {
	_ = godotenv.Load()
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.verbose {
		log.Init("debug", "console", "")
		defer log.Sync()
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	sess, err := application.Sessions.Create(ctx)
	if err != nil {
		return err
	}
	// 退出时关闭会话，归档并释放连接
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Sessions.Close(closeCtx, sess.ID)
	}()

	spinner, _ := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start("Connecting to database...")
	err = application.Sessions.Connect(ctx, sess.ID, opts.params)
	if spinner != nil {
		_ = spinner.Stop()
	}
	if err != nil {
		pterm.Println("❌ Failed to connect to database")
		pterm.Println("   " + err.Error())
		return err
	}
	params, _ := sess.Connection()
	pterm.Println(pterm.NewStyle(pterm.FgLightCyan).Sprint("→ Database: ") +
		pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(fmt.Sprintf("%s@%s:%s/%s", params.User, params.Host, params.Port, params.Database)))

	r := &repl{chat: application.Chat, sessionID: sess.ID, out: os.Stdout}
	if opts.question != "" {
		return r.ask(ctx, opts.question)
	}

	welcome := cfg.Chat.WelcomeText
	if welcome == "" {
		welcome = "Hello! I'm your assistant. Ask me anything about your Home inventory."
	}
	r.printAssistant(welcome)
	return r.loop(ctx, os.Stdin)
}

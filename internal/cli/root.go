// Package cli implements workloadctl, the operator command line for the
// workload service.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lorrc/workload-insights/internal/auth"
	"github.com/lorrc/workload-insights/internal/core/ports"
)

// ConnectOptions select the stores a command needs.
type ConnectOptions struct {
	// Ledger is a SQLite alert ledger path. Empty means the postgres table.
	Ledger string
	// Tracker is set when the command reads tracker data.
	Tracker bool
}

// Session is a set of connected services. Workload is nil when the session
// was opened without the tracker.
type Session struct {
	Workload ports.WorkloadService
	Risk     ports.RiskService
	Close    func() error
}

// Migrator applies the database schema.
type Migrator interface {
	Up() error
	Down(steps int) error
	Version() (version uint, dirty bool, err error)
	Close() error
}

// App holds what the commands are built from. Connections are opened per
// command so commands that need no database never dial one.
type App struct {
	Connect      func(ctx context.Context, opts ConnectOptions) (*Session, error)
	OpenMigrator func(dir string) (Migrator, error)
	// Tokens is nil when no signing secret is configured.
	Tokens *auth.TokenManager
}

// ErrNoSecret is returned by token when no signing secret is configured.
var ErrNoSecret = errors.New("JWT_SECRET is not set")

// state is shared by every command of one root.
type state struct {
	app *App
	v   *viper.Viper
}

// NewRootCmd creates the workloadctl command tree. Persistent flags can also
// be set through WORKLOADCTL_* environment variables.
func NewRootCmd(app *App) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("WORKLOADCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "workloadctl",
		Short: "Workload metrics and risk alerts from the tracker database",
		Long: `workloadctl reads the tracker database the API serves from.

It computes resource metrics and team health, runs the risk detectors,
lists and resolves alerts, applies the schema and signs dashboard tokens.
Detection can write to a local SQLite ledger instead of the shared alert
table with --ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().String("ledger", "", "SQLite alert ledger path (default: the postgres alert table)")
	_ = v.BindPFlag("json", root.PersistentFlags().Lookup("json"))
	_ = v.BindPFlag("ledger", root.PersistentFlags().Lookup("ledger"))

	s := &state{app: app, v: v}
	root.AddCommand(
		newMigrateCmd(s),
		newMetricsCmd(s),
		newTeamHealthCmd(s),
		newDetectCmd(s),
		newAlertsCmd(s),
		newTokenCmd(s),
	)
	return root
}

func (s *state) jsonOutput() bool {
	return s.v.GetBool("json")
}

// withSession opens the services for one command and closes them after fn.
func (s *state) withSession(ctx context.Context, tracker bool, fn func(*Session) error) (err error) {
	sess, err := s.app.Connect(ctx, ConnectOptions{
		Ledger:  s.v.GetString("ledger"),
		Tracker: tracker,
	})
	if err != nil {
		return err
	}
	defer func() {
		if sess.Close != nil {
			err = errors.Join(err, sess.Close())
		}
	}()
	return fn(sess)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"attendance-kiosk/internal/attendance"
	"attendance-kiosk/internal/audit"
	"attendance-kiosk/internal/config"
	"attendance-kiosk/internal/credential"
	"attendance-kiosk/internal/export"
	"attendance-kiosk/internal/logging"
	"attendance-kiosk/internal/store"
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// kiosk is the set of services a command works with. The caller must defer Close.
type kiosk struct {
	db      *store.DB
	codes   *attendance.SessionCodes
	reports *attendance.Reports
	admin   *attendance.AdminService
}

func openKiosk() (*kiosk, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	logger := logging.New(false)

	db, err := store.Open(cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rec := audit.NewLog(audit.NewStore(db.DB), logger)
	repo := attendance.NewRepository(db.DB)
	clock := attendance.SystemClock{}
	return &kiosk{
		db:      db,
		codes:   attendance.NewSessionCodes(repo, rec, clock),
		reports: attendance.NewReports(repo),
		admin:   attendance.NewAdminService(repo, rec, clock, credential.Default(), logger),
	}, nil
}

func (k *kiosk) Close() error {
	return k.db.Close()
}

var stdin = bufio.NewReader(os.Stdin)

// readSecret prompts on the terminal without echo, or reads one line when
// stdin is not a terminal.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return string(b), nil
	}
	line, err := stdin.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// userError turns rejections into their display text.
func userError(err error) error {
	if rej, ok := attendance.AsRejection(err); ok {
		return fmt.Errorf("%s", rej.Message())
	}
	return err
}

var rootCmd = &cobra.Command{
	Use:          "kioskctl",
	Short:        "Administer the attendance kiosk database",
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKiosk()
		if err != nil {
			return err
		}
		defer k.Close()

		version, dirty, err := k.db.SchemaVersion()
		if err != nil {
			return err
		}
		if dirty {
			return fmt.Errorf("schema version %d is dirty; fix it by hand", version)
		}
		fmt.Printf("Database is at schema version %d\n", version)
		return nil
	},
}

var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "Print today's session code, creating it if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKiosk()
		if err != nil {
			return err
		}
		defer k.Close()

		ds, err := k.codes.Today(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", ds.Day, ds.Code)
		return nil
	},
}

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage students",
}

var studentAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Enroll a student",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := attendance.NewStudent{}
		in.RollNo, _ = cmd.Flags().GetString("roll")
		in.FullName, _ = cmd.Flags().GetString("name")
		in.ClassName, _ = cmd.Flags().GetString("class")
		in.Section, _ = cmd.Flags().GetString("section")
		in.PIN, _ = cmd.Flags().GetString("pin")
		if in.PIN == "" {
			pin, err := readSecret("PIN: ")
			if err != nil {
				return err
			}
			in.PIN = pin
		}

		k, err := openKiosk()
		if err != nil {
			return err
		}
		defer k.Close()

		st, err := k.admin.AddStudent(cmd.Context(), in)
		if err != nil {
			return userError(err)
		}
		fmt.Printf("Added student %s (%s)\n", st.FullName, st.RollNo)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export a daily attendance report",
	RunE: func(cmd *cobra.Command, args []string) error {
		day, _ := cmd.Flags().GetString("day")
		formatName, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		format, err := export.ParseFormat(formatName)
		if err != nil {
			return err
		}

		k, err := openKiosk()
		if err != nil {
			return err
		}
		defer k.Close()

		if day == "" {
			day = attendance.Day(attendance.SystemClock{}.Now())
		}
		rep, err := k.reports.Daily(cmd.Context(), day)
		if err != nil {
			return userError(err)
		}

		if out == "" || out == "-" {
			return export.Write(os.Stdout, rep, format)
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}
		if err := export.Write(f, rep, format); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s: %d present, %d absent -> %s\n", rep.Day, rep.Present, rep.Absent, out)
		return nil
	},
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage the admin account",
}

var adminPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Set the admin password",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")

		pw, err := readSecret("New password: ")
		if err != nil {
			return err
		}
		confirm, err := readSecret("Repeat new password: ")
		if err != nil {
			return err
		}
		if pw != confirm {
			return fmt.Errorf("passwords do not match")
		}

		k, err := openKiosk()
		if err != nil {
			return err
		}
		defer k.Close()

		ctx := cmd.Context()
		if username == attendance.DefaultAdminUsername {
			created, err := k.admin.EnsureAdmin(ctx, pw)
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("Created admin account %s\n", username)
				return nil
			}
		}
		if err := k.admin.SetPassword(ctx, username, pw); err != nil {
			return userError(err)
		}
		fmt.Printf("Password updated for %s\n", username)
		return nil
	},
}

func init() {
	studentCmd.AddCommand(studentAddCmd)
	studentAddCmd.Flags().String("roll", "", "Roll number")
	studentAddCmd.Flags().String("name", "", "Full name")
	studentAddCmd.Flags().String("class", "", "Class")
	studentAddCmd.Flags().String("section", "", "Section")
	studentAddCmd.Flags().String("pin", "", "PIN (prompted when omitted)")

	reportCmd.Flags().String("day", "", "Day as YYYY-MM-DD (default today)")
	reportCmd.Flags().StringP("format", "f", "csv", "Output format: csv or xlsx")
	reportCmd.Flags().StringP("out", "o", "", "Output file (default stdout)")

	adminCmd.AddCommand(adminPasswdCmd)
	adminPasswdCmd.Flags().String("username", attendance.DefaultAdminUsername, "Admin username")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(codeCmd)
	rootCmd.AddCommand(studentCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(adminCmd)
}

package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	auditEvent   string
	auditAccount string
	auditEmail   string
	auditJSON    bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the server audit log",
	Long: `Commands for reading the JSON audit records a server writes to stderr.
Run the server with stderr redirected to a file to capture them.`,
}

var auditEventsCmd = &cobra.Command{
	Use:   "events [file]",
	Short: "List audit events, reading stdin when no file is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		events, err := readAuditEvents(in, auditFilter{
			event:   auditEvent,
			account: auditAccount,
			email:   auditEmail,
		})
		if err != nil {
			return err
		}
		if auditJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range events {
				if err := enc.Encode(e.fields); err != nil {
					return err
				}
			}
			return nil
		}
		printAuditEvents(cmd.OutOrStdout(), events)
		return nil
	},
}

// auditRecord is one audit line from the server log.
type auditRecord struct {
	Time    string
	Event   string
	Account string
	fields  map[string]any
}

type auditFilter struct {
	event   string
	account string
	email   string
}

func (f auditFilter) match(rec auditRecord) bool {
	if f.event != "" && rec.Event != f.event {
		return false
	}
	if f.account != "" && rec.Account != f.account {
		return false
	}
	if f.email != "" {
		email, _ := rec.fields["email"].(string)
		if !strings.EqualFold(email, f.email) {
			return false
		}
	}
	return true
}

// baseAuditKeys are printed in their own columns.
var baseAuditKeys = []string{"time", "level", "msg", "component", "event", "account_id", "timestamp"}

// readAuditEvents scans JSON log lines and keeps the audit records that
// pass filter. Non-JSON lines, such as request logs, are skipped.
func readAuditEvents(r io.Reader, filter auditFilter) ([]auditRecord, error) {
	var out []auditRecord
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(line), &fields); err != nil {
			continue
		}
		if msg, _ := fields["msg"].(string); msg != "audit" {
			continue
		}
		rec := auditRecord{fields: fields}
		rec.Time, _ = fields["time"].(string)
		if ts, ok := fields["timestamp"].(string); ok && ts != "" {
			rec.Time = ts
		}
		rec.Event, _ = fields["event"].(string)
		rec.Account, _ = fields["account_id"].(string)
		if filter.match(rec) {
			out = append(out, rec)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return out, nil
}

// details renders the event specific fields as sorted key=value pairs.
func (rec auditRecord) details() string {
	keys := make([]string, 0, len(rec.fields))
	for k := range rec.fields {
		if !slices.Contains(baseAuditKeys, k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, rec.fields[k])
	}
	return strings.Join(parts, " ")
}

func printAuditEvents(w io.Writer, events []auditRecord) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No matching audit events.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tACCOUNT\tDETAILS")
	for _, e := range events {
		account := e.Account
		if account == "" {
			account = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Time, e.Event, account, e.details())
	}
	tw.Flush()
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditEventsCmd)
	auditEventsCmd.Flags().StringVar(&auditEvent, "event", "", "Only show this event type (e.g. password_reset_issued)")
	auditEventsCmd.Flags().StringVar(&auditAccount, "account", "", "Only show events for this account id")
	auditEventsCmd.Flags().StringVar(&auditEmail, "email", "", "Only show events carrying this email address")
	auditEventsCmd.Flags().BoolVar(&auditJSON, "json", false, "Print matching records as JSON lines")
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/dental-availability/internal/availability"
	"github.com/hackgods/dental-availability/internal/clinicfile"
)

var (
	slotsProvider string
	slotsDate     string
	slotsDuration int
	slotsJSON     bool

	checkProvider     string
	checkResource     string
	checkStart        string
	checkEnd          string
	checkExclude      string
	checkAlternatives int
	checkJSON         bool
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "List free slots for a provider on one day",
	RunE:  runSlots,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a proposed booking",
	RunE:  runCheck,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the clinic file and report what it contains",
	RunE:  runValidate,
}

func init() {
	slotsCmd.Flags().StringVarP(&slotsProvider, "provider", "p", "", "Provider name or ID (required)")
	slotsCmd.Flags().StringVarP(&slotsDate, "date", "d", "", "Day as YYYY-MM-DD (required)")
	slotsCmd.Flags().IntVar(&slotsDuration, "duration", 30, "Appointment length in minutes")
	slotsCmd.Flags().BoolVar(&slotsJSON, "json", false, "Print JSON")
	slotsCmd.MarkFlagRequired("provider")
	slotsCmd.MarkFlagRequired("date")

	checkCmd.Flags().StringVarP(&checkProvider, "provider", "p", "", "Provider name or ID (required)")
	checkCmd.Flags().StringVarP(&checkResource, "resource", "r", "", "Resource name or ID")
	checkCmd.Flags().StringVar(&checkStart, "start", "", "Start, RFC 3339 or clinic-local 2006-01-02T15:04 (required)")
	checkCmd.Flags().StringVar(&checkEnd, "end", "", "End, same formats as --start (required)")
	checkCmd.Flags().StringVar(&checkExclude, "exclude", "", "Appointment ID to ignore, for rescheduling")
	checkCmd.Flags().IntVar(&checkAlternatives, "alternatives", 5, "Alternatives to suggest on conflict")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print JSON")
	checkCmd.MarkFlagRequired("provider")
	checkCmd.MarkFlagRequired("start")
	checkCmd.MarkFlagRequired("end")
}

func runSlots(cmd *cobra.Command, _ []string) error {
	clinic, err := clinicfile.Load(clinicPath)
	if err != nil {
		return err
	}
	provider, err := clinic.Provider(slotsProvider)
	if err != nil {
		return err
	}
	date, err := clinic.ParseDate(slotsDate)
	if err != nil {
		return err
	}

	bc := clinic.BookingContext(provider)
	slots := slices.Collect(clinic.Policy.GenerateSlots(bc.WorkingHours, date, bc.Appointments, slotsDuration))

	if slotsJSON {
		return writeJSON(cmd.OutOrStdout(), slotsOutput(slots))
	}
	return printSlots(cmd.OutOrStdout(), provider.Name, date, slots)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	clinic, err := clinicfile.Load(clinicPath)
	if err != nil {
		return err
	}
	provider, err := clinic.Provider(checkProvider)
	if err != nil {
		return err
	}

	req := availability.BookingRequest{ProviderID: provider.ID}
	if checkResource != "" {
		res, err := clinic.Resource(checkResource)
		if err != nil {
			return err
		}
		if !res.Available {
			return fmt.Errorf("resource %q is not available for booking", res.Name)
		}
		req.ResourceID = &res.ID
	}
	if checkExclude != "" {
		id, err := uuid.Parse(checkExclude)
		if err != nil {
			return fmt.Errorf("--exclude: %w", err)
		}
		req.ExcludeAppointmentID = &id
	}
	if req.Start, err = clinic.ParseTime(checkStart); err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	if req.End, err = clinic.ParseTime(checkEnd); err != nil {
		return fmt.Errorf("--end: %w", err)
	}

	bc := clinic.BookingContext(provider)
	decision := clinic.Policy.ValidateBooking(req, bc)
	var alternatives []availability.Slot
	if decision.Outcome == availability.RejectedConflict {
		alternatives = clinic.Policy.Alternatives(req, bc, checkAlternatives)
	}

	if checkJSON {
		return writeJSON(cmd.OutOrStdout(), decisionOutput{
			Available:    decision.Accepted(),
			Outcome:      string(decision.Outcome),
			Reason:       decision.Reason,
			Conflicts:    conflictIDs(decision.Conflicts),
			Alternatives: slotsOutput(alternatives),
		})
	}
	return printDecision(cmd.OutOrStdout(), decision, alternatives)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	clinic, err := clinicfile.Load(clinicPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "timezone: %s\n", clinic.Location)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tID\tWORKING DAYS")
	for _, p := range clinic.Providers {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", p.Name, p.ID, len(p.Hours.Days))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d resources, %d appointments\n", len(clinic.Resources), len(clinic.Appointments))
	return nil
}

type slotOutput struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type decisionOutput struct {
	Available    bool         `json:"available"`
	Outcome      string       `json:"outcome"`
	Reason       string       `json:"reason,omitempty"`
	Conflicts    []uuid.UUID  `json:"conflicts,omitempty"`
	Alternatives []slotOutput `json:"alternatives,omitempty"`
}

func slotsOutput(slots []availability.Slot) []slotOutput {
	out := make([]slotOutput, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotOutput{Start: s.Start, End: s.End})
	}
	return out
}

func conflictIDs(appts []availability.Appointment) []uuid.UUID {
	var ids []uuid.UUID
	for _, a := range appts {
		ids = append(ids, a.ID)
	}
	return ids
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSlots(w io.Writer, provider string, date time.Time, slots []availability.Slot) error {
	fmt.Fprintf(w, "%s on %s: %d free slot(s)\n", provider, date.Format("Mon 2006-01-02"), len(slots))
	for _, s := range slots {
		fmt.Fprintf(w, "  %s-%s\n", s.Start.Format("15:04"), s.End.Format("15:04"))
	}
	return nil
}

func printDecision(w io.Writer, d availability.Decision, alternatives []availability.Slot) error {
	if d.Accepted() {
		fmt.Fprintln(w, "available")
		return nil
	}
	fmt.Fprintf(w, "%s: %s\n", d.Outcome, d.Reason)
	for _, c := range d.Conflicts {
		fmt.Fprintf(w, "  conflicts with %s %s-%s (%s)\n", c.ID, c.Start.Format("15:04"), c.End.Format("15:04"), c.Status)
	}
	if len(alternatives) > 0 {
		fmt.Fprintln(w, "alternatives:")
		for _, s := range alternatives {
			fmt.Fprintf(w, "  %s-%s\n", s.Start.Format("15:04"), s.End.Format("15:04"))
		}
	}
	return nil
}

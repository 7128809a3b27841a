// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/claimcheck/lib/capture"
	"github.com/bureau-foundation/claimcheck/lib/claimstore"
	"github.com/bureau-foundation/claimcheck/lib/config"
)

// captureReport is the JSON document written after a capture.
type captureReport struct {
	ActivityID string              `json:"activity_id"`
	Tracking   string              `json:"tracking"`
	Descriptor *capture.Descriptor `json:"descriptor,omitempty"`
	Token      *claimstore.Token   `json:"token,omitempty"`
	Bytes      int64               `json:"bytes"`
}

func runCapture(args []string, std streams) error {
	var (
		common        storeFlags
		tracking      string
		policy        string
		activityID    string
		activityPath  string
		reportPath    string
		discard       bool
		transactional bool
	)

	flags := pflag.NewFlagSet("capture", pflag.ContinueOnError)
	common.add(flags)
	flags.StringVar(&tracking, "tracking", "", "tracking level: none, step, context, body, claim (default: capture.default_tracking)")
	flags.StringVar(&policy, "policy", "", "named tracking policy from capture.policies")
	flags.StringVar(&activityID, "activity-id", "", "activity identifier recorded with the capture (default: a new ULID)")
	flags.StringVar(&activityPath, "activity-log", "", "append capture records to this JSON-lines file")
	flags.StringVar(&reportPath, "report", "-", "write the capture report here (- for stderr)")
	flags.BoolVar(&discard, "discard", false, "consume the payload without copying it to stdout")
	flags.BoolVar(&transactional, "transactional", false, "stage external captures and roll them back on failure")
	flags.Usage = func() {
		fmt.Fprintf(std.stderr, "Usage: claimcheck capture [flags] <file|->\n\nFlags:\n")
		flags.PrintDefaults()
	}

	if stop, err := parseFlags(flags, args, std.stderr); stop || err != nil {
		return err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return fmt.Errorf("capture requires exactly one input")
	}
	if tracking != "" && policy != "" {
		return fmt.Errorf("--tracking and --policy are mutually exclusive")
	}

	cfg, store, logger, err := common.open(std.stderr)
	if err != nil {
		return err
	}

	modes, err := resolveTracking(cfg, tracking, policy)
	if err != nil {
		return err
	}

	if activityID == "" {
		activityID = ulid.Make().String()
	}

	var activityLog capture.ActivityLog
	if activityPath != "" {
		log, err := openActivityLog(activityPath)
		if err != nil {
			return err
		}
		defer log.Close()
		activityLog = log
	}

	input, err := openInput(flags.Arg(0), std.stdin)
	if err != nil {
		return err
	}

	payload := capture.NewStream(input, capture.Options{
		ActivityLog: activityLog,
		ActivityID:  activityID,
		Logger:      logger,
	})
	defer payload.Close()

	var tx *rollbackTransaction
	var txArg claimstore.Transaction
	if transactional {
		tx = &rollbackTransaction{logger: logger}
		txArg = tx
	}

	written, err := copyCapture(payload, store, modes, txArg, discard, std.stdout)
	if err != nil {
		if tx != nil {
			err = errors.Join(err, tx.rollback())
		}
		return err
	}

	report := captureReport{
		ActivityID: activityID,
		Tracking:   modes.String(),
		Bytes:      written,
	}
	if descriptor, ok := payload.Descriptor(); ok {
		report.Descriptor = &descriptor
	}
	if token, ok := payload.Token(); ok {
		report.Token = &token
	}
	return writeReport(reportPath, std.stderr, report)
}

// copyCapture sets up capture per modes and drains payload into stdout.
func copyCapture(payload *capture.Stream, store *claimstore.Store, modes capture.TrackingModes, tx claimstore.Transaction, discard bool, stdout io.Writer) (int64, error) {
	if err := payload.SetupCapture(store, modes, tx); err != nil {
		return 0, err
	}
	output := stdout
	if discard {
		output = io.Discard
	}
	written, err := io.Copy(output, payload)
	if err != nil {
		return written, fmt.Errorf("reading payload: %w", err)
	}
	if err := payload.Close(); err != nil {
		return written, fmt.Errorf("closing payload: %w", err)
	}
	return written, nil
}

// resolveTracking picks the tracking modes from an explicit level, a
// named policy, or the configured default, in that order.
func resolveTracking(cfg *config.Config, tracking, policy string) (capture.TrackingModes, error) {
	if tracking != "" {
		return capture.ParseTrackingModes(tracking)
	}
	if policy != "" {
		policies, err := cfg.TrackingPolicies()
		if err != nil {
			return capture.TrackNone, err
		}
		return policies.ResolveTracking(context.Background(), policy)
	}
	return cfg.DefaultTracking()
}

func writeReport(path string, stderr io.Writer, report captureReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	data = append(data, '\n')
	if path == "-" {
		_, err := stderr.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// activityRecord is one line of the activity log file.
type activityRecord struct {
	ActivityID string             `json:"activity_id"`
	Descriptor capture.Descriptor `json:"descriptor"`
	Length     int64              `json:"length"`
}

// fileActivityLog appends capture records to a JSON-lines file.
type fileActivityLog struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

func openActivityLog(path string) (*fileActivityLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening activity log: %w", err)
	}
	return &fileActivityLog{file: file, encoder: json.NewEncoder(file)}, nil
}

func (l *fileActivityLog) RecordCapture(activityID string, descriptor capture.Descriptor, length int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.encoder.Encode(activityRecord{
		ActivityID: activityID,
		Descriptor: descriptor,
		Length:     length,
	})
}

func (l *fileActivityLog) Close() error {
	return l.file.Close()
}

// rollbackTransaction collects rollbacks enlisted by staged sinks and
// runs them in reverse order when the capture fails.
type rollbackTransaction struct {
	logger    *slog.Logger
	rollbacks []func() error
}

func (t *rollbackTransaction) Enlist(rollback func() error) {
	t.rollbacks = append(t.rollbacks, rollback)
}

func (t *rollbackTransaction) rollback() error {
	var errs []error
	for i := len(t.rollbacks) - 1; i >= 0; i-- {
		if err := t.rollbacks[i](); err != nil {
			errs = append(errs, err)
		}
	}
	t.logger.Warn("capture rolled back", "enlisted", len(t.rollbacks), "failures", len(errs))
	t.rollbacks = nil
	return errors.Join(errs...)
}

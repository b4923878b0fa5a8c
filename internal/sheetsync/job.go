// Package sheetsync mirrors the submission store into one spreadsheet tab.
// Every run replaces the tab with a full snapshot; there is no diffing.
package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thepathwise/intake/internal/apperr"
	"github.com/thepathwise/intake/pkg/repository"
)

// lastColumn bounds the cleared range; it is wider than the header so stale
// columns from older layouts are removed too.
const lastColumn = "Z"

// Result summarizes one sync run.
type Result struct {
	SheetName string `json:"sheetName"`
	FellBack  bool   `json:"fellBack"`
	Records   int    `json:"records"`
	ErrorRows int    `json:"errorRows"`
	Rows      int    `json:"rows"`
	Formatted bool   `json:"formatted"`
}

type Job struct {
	client    Client
	docs      repository.DocumentRepo
	sheetName string
	logger    *slog.Logger
}

func New(client Client, docs repository.DocumentRepo, sheetName string, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{client: client, docs: docs, sheetName: sheetName, logger: logger}
}

// Run clears the target tab and writes the header plus one row per stored
// record, newest first.
func (j *Job) Run(ctx context.Context) (Result, error) {
	tab, fellBack, err := j.resolveTab(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{SheetName: tab.Title, FellBack: fellBack}

	docs, err := j.docs.ListDocuments(ctx)
	if err != nil {
		return res, &apperr.UpstreamError{Op: "list documents", Err: err}
	}
	snap := BuildSnapshot(docs, j.logger)
	res.Records = snap.Records
	res.ErrorRows = snap.ErrorRows
	res.Rows = len(snap.Rows)

	if err := j.client.Clear(ctx, A1Range(tab.Title, "A:"+lastColumn)); err != nil {
		return res, &apperr.UpstreamError{Op: "clear sheet", Err: err}
	}
	if err := j.client.Write(ctx, A1Range(tab.Title, "A1"), snap.Rows); err != nil {
		return res, &apperr.UpstreamError{Op: "write sheet", Err: err}
	}

	if err := j.client.FormatHeader(ctx, tab.ID, Columns); err != nil {
		j.logger.Warn("sheet formatting failed", "sheet", tab.Title, "err", err)
	} else {
		res.Formatted = true
	}

	j.logger.Info("sheet sync complete",
		"sheet", tab.Title,
		"records", res.Records,
		"error_rows", res.ErrorRows,
	)
	return res, nil
}

func (j *Job) resolveTab(ctx context.Context) (Tab, bool, error) {
	tabs, err := j.client.Tabs(ctx)
	if err != nil {
		return Tab{}, false, &apperr.UpstreamError{Op: "get spreadsheet", Err: err}
	}
	if len(tabs) == 0 {
		return Tab{}, false, &apperr.ConfigError{Key: "GOOGLE_SPREADSHEET_ID", Msg: "no sheets found in spreadsheet"}
	}
	for _, t := range tabs {
		if t.Title == j.sheetName {
			return t, false, nil
		}
	}
	j.logger.Warn("configured sheet not found, using first sheet",
		"configured", j.sheetName,
		"using", tabs[0].Title,
	)
	return tabs[0], true, nil
}

// A1Range addresses cells of a tab, quoting the tab title.
func A1Range(title, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(title, "'", "''"), cells)
}

// IsFatal reports whether err should stop the calling process rather than
// wait for the next scheduled run.
func IsFatal(err error) bool {
	return errors.Is(err, apperr.ErrConfiguration)
}

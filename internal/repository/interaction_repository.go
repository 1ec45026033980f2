package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/polymorphcorp/profilegpt/internal/domain"
	"github.com/polymorphcorp/profilegpt/internal/observability"
)

const (
	interactionFilePrefix = "chat_log_"
	interactionFileSuffix = ".ndjson"
	interactionDateFormat = "060102" // YYMMDD, matches the admin date tokens
)

// InteractionQuery filters the dataset listing. Dates are YYMMDD tokens
// already resolved via ResolveDateToken.
type InteractionQuery struct {
	StartDate string
	EndDate   string
	SessionID string
	Filtered  string // "all", "true" or "false"
	Limit     int
	Offset    int
}

type DatasetPage struct {
	Entries []domain.Interaction `json:"entries"`
	Total   int                  `json:"total"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
	HasMore bool                 `json:"has_more"`
}

type InteractionRepository interface {
	Append(sessionID, userMessage, assistantResponse string, filteredPreLLM bool) error
	List(query InteractionQuery) (*DatasetPage, error)
}

type FileInteractionRepository struct {
	dir string
	now func() time.Time
}

func NewInteractionRepository(dataDir string) *FileInteractionRepository {
	return &FileInteractionRepository{dir: dataDir, now: time.Now}
}

func (r *FileInteractionRepository) WithClock(now func() time.Time) *FileInteractionRepository {
	r.now = now
	return r
}

// ValidateDateToken accepts YYMMDD dates plus the "today" and "yesterday"
// shorthands used by the admin dataset endpoint.
func ValidateDateToken(token string) bool {
	if token == "today" || token == "yesterday" {
		return true
	}
	if len(token) != 6 {
		return false
	}
	_, err := time.Parse(interactionDateFormat, token)
	return err == nil
}

// ResolveDateToken turns a date token into a concrete YYMMDD date.
func ResolveDateToken(token string, now time.Time) string {
	switch token {
	case "today":
		return now.UTC().Format(interactionDateFormat)
	case "yesterday":
		return now.UTC().AddDate(0, 0, -1).Format(interactionDateFormat)
	default:
		return token
	}
}

func (r *FileInteractionRepository) Append(sessionID, userMessage, assistantResponse string, filteredPreLLM bool) error {
	now := r.now().UTC()
	entry := domain.Interaction{
		Timestamp:         now.Format(ledgerTimeFormat),
		SessionID:         sessionID,
		UserMessage:       userMessage,
		AssistantResponse: assistantResponse,
		FilteredPreLLM:    filteredPreLLM,
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		observability.RecordRepositoryOperation(context.Background(), "interaction", "append", "error")
		return fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(r.dir, interactionFilePrefix+now.Format(interactionDateFormat)+interactionFileSuffix)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "interaction", "append", "error")
		return fmt.Errorf("open interaction log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(&entry)
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "interaction", "append", "error")
		return fmt.Errorf("encode interaction: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		observability.RecordRepositoryOperation(context.Background(), "interaction", "append", "error")
		return fmt.Errorf("append interaction: %w", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "interaction", "append", "success")
	return nil
}

// List reads matching per-day files newest first and applies the window.
// Read failures propagate: there is no safe empty default for a listing the
// administrator relies on.
func (r *FileInteractionRepository) List(query InteractionQuery) (*DatasetPage, error) {
	window := normalizeDatasetWindow(query.Limit, query.Offset)

	dates, err := r.logDates()
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "interaction", "list", "error")
		return nil, err
	}

	var entries []domain.Interaction
	for _, date := range dates {
		if query.StartDate != "" && date < query.StartDate {
			continue
		}
		if query.EndDate != "" && date > query.EndDate {
			continue
		}
		dayEntries, err := r.readDay(date)
		if err != nil {
			observability.RecordRepositoryOperation(context.Background(), "interaction", "list", "error")
			return nil, err
		}
		for _, e := range dayEntries {
			if query.SessionID != "" && e.SessionID != query.SessionID {
				continue
			}
			switch query.Filtered {
			case "true":
				if !e.FilteredPreLLM {
					continue
				}
			case "false":
				if e.FilteredPreLLM {
					continue
				}
			}
			entries = append(entries, e)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})

	total := len(entries)
	start := window.Offset
	if start > total {
		start = total
	}
	end := start + window.Limit
	if end > total {
		end = total
	}

	observability.RecordRepositoryOperation(context.Background(), "interaction", "list", "success")
	return &DatasetPage{
		Entries: entries[start:end],
		Total:   total,
		Limit:   window.Limit,
		Offset:  window.Offset,
		HasMore: end < total,
	}, nil
}

func (r *FileInteractionRepository) logDates() ([]string, error) {
	dirEntries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log dir: %w", err)
	}
	var dates []string
	for _, de := range dirEntries {
		name := de.Name()
		if !strings.HasPrefix(name, interactionFilePrefix) || !strings.HasSuffix(name, interactionFileSuffix) {
			continue
		}
		date := strings.TrimSuffix(strings.TrimPrefix(name, interactionFilePrefix), interactionFileSuffix)
		if len(date) == 6 {
			dates = append(dates, date)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

func (r *FileInteractionRepository) readDay(date string) ([]domain.Interaction, error) {
	path := filepath.Join(r.dir, interactionFilePrefix+date+interactionFileSuffix)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open interaction log: %w", err)
	}
	defer f.Close()

	var entries []domain.Interaction
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e domain.Interaction
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("decode interaction line: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read interaction log: %w", err)
	}
	return entries, nil
}

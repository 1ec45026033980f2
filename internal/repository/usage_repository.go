package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/polymorphcorp/profilegpt/internal/domain"
	"github.com/polymorphcorp/profilegpt/internal/observability"
)

const usageLedgerFile = "usage_tracking.ndjson"

// gpt-4o-mini pricing, USD per 1M tokens.
const (
	costPer1MInputTokens  = 0.150
	costPer1MOutputTokens = 0.600
)

type UsageFilter struct {
	StartDate string // YYYY-MM-DD, inclusive
	EndDate   string // YYYY-MM-DD, inclusive
	SessionID string
}

type UsageBucket struct {
	Count  int     `json:"count"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

type UsageStats struct {
	TotalRecords         int                    `json:"total_records"`
	TotalTokens          int                    `json:"total_tokens"`
	TotalCost            float64                `json:"total_cost"`
	ByCallType           map[string]UsageBucket `json:"by_call_type"`
	ByScope              map[string]UsageBucket `json:"by_scope"`
	ByModel              map[string]UsageBucket `json:"by_model"`
	ByDate               map[string]UsageBucket `json:"by_date"`
	AverageTokensPerCall float64                `json:"average_tokens_per_call"`
	AverageCostPerCall   float64                `json:"average_cost_per_call"`
}

type SessionUsageSummary struct {
	SessionID   string  `json:"session_id"`
	TotalCalls  int     `json:"total_calls"`
	TotalTokens int     `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
	FirstSeen   string  `json:"first_seen"`
	LastSeen    string  `json:"last_seen"`
}

type UsageRepository interface {
	Log(sessionID string, promptTokens, completionTokens int, model, callType string, scope *string) (*domain.UsageRecord, error)
	List(filter UsageFilter) ([]domain.UsageRecord, error)
	TopSessions(limit, days int) ([]SessionUsageSummary, error)
}

type FileUsageRepository struct {
	path string
	now  func() time.Time
}

func NewUsageRepository(dataDir string) *FileUsageRepository {
	return &FileUsageRepository{path: filepath.Join(dataDir, usageLedgerFile), now: time.Now}
}

func (r *FileUsageRepository) WithClock(now func() time.Time) *FileUsageRepository {
	r.now = now
	return r
}

// CalculateCost converts token counts to USD at the configured rates.
func CalculateCost(promptTokens, completionTokens int) (inputCost, outputCost, totalCost float64) {
	inputCost = float64(promptTokens) / 1_000_000 * costPer1MInputTokens
	outputCost = float64(completionTokens) / 1_000_000 * costPer1MOutputTokens
	return inputCost, outputCost, inputCost + outputCost
}

func (r *FileUsageRepository) Log(sessionID string, promptTokens, completionTokens int, model, callType string, scope *string) (*domain.UsageRecord, error) {
	inputCost, outputCost, totalCost := CalculateCost(promptTokens, completionTokens)
	rec := &domain.UsageRecord{
		SessionID:        sessionID,
		Timestamp:        r.now().UTC().Format(ledgerTimeFormat),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Model:            model,
		CallType:         callType,
		Scope:            scope,
		InputCost:        inputCost,
		OutputCost:       outputCost,
		TotalCost:        totalCost,
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		observability.RecordRepositoryOperation(context.Background(), "usage", "log", "error")
		return nil, fmt.Errorf("create usage dir: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "usage", "log", "error")
		return nil, fmt.Errorf("open usage ledger: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "usage", "log", "error")
		return nil, fmt.Errorf("encode usage record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		observability.RecordRepositoryOperation(context.Background(), "usage", "log", "error")
		return nil, fmt.Errorf("append usage record: %w", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "usage", "log", "success")
	return rec, nil
}

func (r *FileUsageRepository) List(filter UsageFilter) ([]domain.UsageRecord, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		observability.RecordRepositoryOperation(context.Background(), "usage", "list", "error")
		return nil, fmt.Errorf("open usage ledger: %w", err)
	}
	defer f.Close()

	var records []domain.UsageRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec domain.UsageRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			observability.RecordRepositoryOperation(context.Background(), "usage", "list", "error")
			return nil, fmt.Errorf("decode usage record: %w", err)
		}
		if !matchesUsageFilter(&rec, filter) {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		observability.RecordRepositoryOperation(context.Background(), "usage", "list", "error")
		return nil, fmt.Errorf("read usage ledger: %w", err)
	}
	observability.RecordRepositoryOperation(context.Background(), "usage", "list", "success")
	return records, nil
}

func (r *FileUsageRepository) TopSessions(limit, days int) ([]SessionUsageSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	if days <= 0 {
		days = 7
	}
	cutoff := r.now().UTC().AddDate(0, 0, -days).Format("2006-01-02")
	records, err := r.List(UsageFilter{StartDate: cutoff})
	if err != nil {
		return nil, err
	}

	bySession := make(map[string]*SessionUsageSummary)
	for _, rec := range records {
		s, ok := bySession[rec.SessionID]
		if !ok {
			s = &SessionUsageSummary{SessionID: rec.SessionID, FirstSeen: rec.Timestamp}
			bySession[rec.SessionID] = s
		}
		s.TotalCalls++
		s.TotalTokens += rec.TotalTokens
		s.TotalCost += rec.TotalCost
		s.LastSeen = rec.Timestamp
	}

	summaries := make([]SessionUsageSummary, 0, len(bySession))
	for _, s := range bySession {
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].TotalCost > summaries[j].TotalCost
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// CalculateUsageStats aggregates records into the admin usage report.
func CalculateUsageStats(records []domain.UsageRecord) *UsageStats {
	stats := &UsageStats{
		ByCallType: make(map[string]UsageBucket),
		ByScope:    make(map[string]UsageBucket),
		ByModel:    make(map[string]UsageBucket),
		ByDate:     make(map[string]UsageBucket),
	}
	if len(records) == 0 {
		return stats
	}

	for _, rec := range records {
		stats.TotalTokens += rec.TotalTokens
		stats.TotalCost += rec.TotalCost

		addBucket(stats.ByCallType, rec.CallType, &rec)
		scope := "none"
		if rec.Scope != nil && *rec.Scope != "" {
			scope = *rec.Scope
		}
		addBucket(stats.ByScope, scope, &rec)
		addBucket(stats.ByModel, rec.Model, &rec)
		addBucket(stats.ByDate, recordDate(rec.Timestamp), &rec)
	}

	stats.TotalRecords = len(records)
	stats.AverageTokensPerCall = float64(stats.TotalTokens) / float64(len(records))
	stats.AverageCostPerCall = stats.TotalCost / float64(len(records))
	return stats
}

func addBucket(m map[string]UsageBucket, key string, rec *domain.UsageRecord) {
	b := m[key]
	b.Count++
	b.Tokens += rec.TotalTokens
	b.Cost += rec.TotalCost
	m[key] = b
}

func matchesUsageFilter(rec *domain.UsageRecord, filter UsageFilter) bool {
	date := recordDate(rec.Timestamp)
	if filter.StartDate != "" && date < filter.StartDate {
		return false
	}
	if filter.EndDate != "" && date > filter.EndDate {
		return false
	}
	if filter.SessionID != "" && rec.SessionID != filter.SessionID {
		return false
	}
	return true
}

func recordDate(timestamp string) string {
	if len(timestamp) < 10 {
		return timestamp
	}
	return timestamp[:10]
}

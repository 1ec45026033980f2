package repository

import (
	"math"
	"testing"
	"time"

	"github.com/polymorphcorp/profilegpt/internal/domain"
)

func TestCalculateCost(t *testing.T) {
	input, output, total := CalculateCost(1_000_000, 1_000_000)
	if math.Abs(input-0.150) > 1e-9 {
		t.Fatalf("input cost = %f, want 0.150", input)
	}
	if math.Abs(output-0.600) > 1e-9 {
		t.Fatalf("output cost = %f, want 0.600", output)
	}
	if math.Abs(total-0.750) > 1e-9 {
		t.Fatalf("total cost = %f, want 0.750", total)
	}
}

func TestUsageLogAndListWithFilters(t *testing.T) {
	repo := NewUsageRepository(t.TempDir())

	day1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	repo.WithClock(func() time.Time { return day1 })
	scope := domain.ScopeIn
	if _, err := repo.Log("sess-1", 100, 50, "gpt-4o-mini", domain.CallTypeConversation, &scope); err != nil {
		t.Fatalf("log day1: %v", err)
	}
	repo.WithClock(func() time.Time { return day2 })
	if _, err := repo.Log("sess-2", 30, 5, "gpt-4o-mini", domain.CallTypeClassification, nil); err != nil {
		t.Fatalf("log day2: %v", err)
	}

	all, err := repo.List(UsageFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if all[0].TotalTokens != 150 {
		t.Fatalf("total tokens = %d, want 150", all[0].TotalTokens)
	}

	fromDay2, err := repo.List(UsageFilter{StartDate: "2026-03-02"})
	if err != nil {
		t.Fatalf("list from day2: %v", err)
	}
	if len(fromDay2) != 1 || fromDay2[0].SessionID != "sess-2" {
		t.Fatalf("date filter failed: %+v", fromDay2)
	}

	bySession, err := repo.List(UsageFilter{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("list by session: %v", err)
	}
	if len(bySession) != 1 || bySession[0].CallType != domain.CallTypeConversation {
		t.Fatalf("session filter failed: %+v", bySession)
	}
}

func TestCalculateUsageStatsAggregates(t *testing.T) {
	scopeOut := domain.ScopeOut
	records := []domain.UsageRecord{
		{SessionID: "a", Timestamp: "2026-03-01T09:00:00.000000Z", TotalTokens: 100, TotalCost: 0.01, Model: "gpt-4o-mini", CallType: domain.CallTypeConversation, Scope: &scopeOut},
		{SessionID: "a", Timestamp: "2026-03-01T10:00:00.000000Z", TotalTokens: 50, TotalCost: 0.005, Model: "gpt-4o-mini", CallType: domain.CallTypeClassification},
		{SessionID: "b", Timestamp: "2026-03-02T09:00:00.000000Z", TotalTokens: 150, TotalCost: 0.02, Model: "gpt-4o-mini", CallType: domain.CallTypeConversation},
	}

	stats := CalculateUsageStats(records)
	if stats.TotalRecords != 3 || stats.TotalTokens != 300 {
		t.Fatalf("totals wrong: %+v", stats)
	}
	if stats.ByCallType[domain.CallTypeConversation].Count != 2 {
		t.Fatalf("by_call_type wrong: %+v", stats.ByCallType)
	}
	if stats.ByScope["none"].Count != 1 || stats.ByScope[domain.ScopeOut].Count != 1 {
		t.Fatalf("by_scope wrong: %+v", stats.ByScope)
	}
	if stats.ByDate["2026-03-01"].Tokens != 150 {
		t.Fatalf("by_date wrong: %+v", stats.ByDate)
	}
	if math.Abs(stats.AverageTokensPerCall-100) > 1e-9 {
		t.Fatalf("average tokens = %f, want 100", stats.AverageTokensPerCall)
	}
}

func TestCalculateUsageStatsEmpty(t *testing.T) {
	stats := CalculateUsageStats(nil)
	if stats.TotalRecords != 0 || stats.TotalCost != 0 || stats.AverageCostPerCall != 0 {
		t.Fatalf("empty stats must be zeroed: %+v", stats)
	}
}

func TestTopSessionsOrdersByCost(t *testing.T) {
	repo := NewUsageRepository(t.TempDir())
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	repo.WithClock(func() time.Time { return now })

	if _, err := repo.Log("cheap", 100, 10, "gpt-4o-mini", domain.CallTypeConversation, nil); err != nil {
		t.Fatalf("log cheap: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := repo.Log("expensive", 100_000, 50_000, "gpt-4o-mini", domain.CallTypeConversation, nil); err != nil {
			t.Fatalf("log expensive: %v", err)
		}
	}

	top, err := repo.TopSessions(1, 7)
	if err != nil {
		t.Fatalf("top sessions: %v", err)
	}
	if len(top) != 1 || top[0].SessionID != "expensive" || top[0].TotalCalls != 3 {
		t.Fatalf("unexpected top sessions: %+v", top)
	}
}

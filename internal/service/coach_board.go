package service

import (
	"context"
	"sync"
	"time"

	"github.com/habitflow/internal/datekey"
	"github.com/habitflow/internal/db"
)

const coachTaskTimeout = 90 * time.Second

// Advisor 是 CoachBoard 依赖的教练能力
type Advisor interface {
	GenerateAdvice(ctx context.Context, habits []db.Habit, logs []db.HabitLog, profile db.UserProfile, today datekey.Key) string
	SuggestHabits(ctx context.Context, habits []db.Habit) []Suggestion
}

// AdviceView 是最近一次建议的展示状态
type AdviceView struct {
	Text       string    `json:"text"`
	Generation uint64    `json:"generation"`
	Pending    bool      `json:"pending"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SuggestionsView 是最近一次推荐的展示状态
type SuggestionsView struct {
	Items      []Suggestion `json:"items"`
	Generation uint64       `json:"generation"`
	Pending    bool         `json:"pending"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// CoachBoard 在后台执行教练请求。每次请求递增代号，
// 只有代号仍是最新的结果才会落盘，较早请求的迟到结果直接丢弃。
// 旧请求不会被取消，只是结果被忽略。
type CoachBoard struct {
	advisor Advisor
	now     func() time.Time

	mu          sync.Mutex
	advice      AdviceView
	suggestions SuggestionsView
	wg          sync.WaitGroup
}

// NewCoachBoard 构造 CoachBoard
func NewCoachBoard(advisor Advisor) *CoachBoard {
	return &CoachBoard{
		advisor:     advisor,
		now:         time.Now,
		suggestions: SuggestionsView{Items: []Suggestion{}},
	}
}

// RequestAdvice 基于快照发起一次建议生成，返回本次请求的代号
func (b *CoachBoard) RequestAdvice(state State, today datekey.Key) uint64 {
	snapshot := state.Clone()

	b.mu.Lock()
	b.advice.Generation++
	b.advice.Pending = true
	generation := b.advice.Generation
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), coachTaskTimeout)
		defer cancel()

		text := b.advisor.GenerateAdvice(ctx, snapshot.Habits, snapshot.Logs, snapshot.User, today)

		b.mu.Lock()
		defer b.mu.Unlock()
		if generation != b.advice.Generation {
			return
		}
		b.advice.Text = text
		b.advice.Pending = false
		b.advice.UpdatedAt = b.now()
	}()
	return generation
}

// RequestSuggestions 发起一次习惯推荐，返回本次请求的代号
func (b *CoachBoard) RequestSuggestions(habits []db.Habit) uint64 {
	snapshot := append([]db.Habit(nil), habits...)

	b.mu.Lock()
	b.suggestions.Generation++
	b.suggestions.Pending = true
	generation := b.suggestions.Generation
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), coachTaskTimeout)
		defer cancel()

		items := b.advisor.SuggestHabits(ctx, snapshot)
		if items == nil {
			items = []Suggestion{}
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if generation != b.suggestions.Generation {
			return
		}
		b.suggestions.Items = items
		b.suggestions.Pending = false
		b.suggestions.UpdatedAt = b.now()
	}()
	return generation
}

// Advice 返回当前建议
func (b *CoachBoard) Advice() AdviceView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.advice
}

// Suggestions 返回当前推荐的拷贝
func (b *CoachBoard) Suggestions() SuggestionsView {
	b.mu.Lock()
	defer b.mu.Unlock()
	view := b.suggestions
	view.Items = append([]Suggestion{}, b.suggestions.Items...)
	return view
}

// Wait 阻塞直到所有后台请求结束，用于测试与优雅退出
func (b *CoachBoard) Wait() {
	b.wg.Wait()
}

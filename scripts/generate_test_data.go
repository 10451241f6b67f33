package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/habitflow/internal/config"
	"github.com/habitflow/internal/datekey"
	"github.com/habitflow/internal/db"
	"github.com/habitflow/internal/service"
)

// 测试数据生成器：重置为默认习惯后，按天回放若干周的打卡
func main() {
	days := flag.Int("days", 70, "number of past days to fill")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	cfg := config.Load()
	balance, err := config.LoadBalance(cfg.BalanceFile)
	if err != nil {
		log.Fatal("配置文件读取失败:", err)
	}
	gdb, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")
	state, err := seedDemoData(context.Background(), service.NewGormBlobStore(gdb), balance, time.Now(), *days, rand.New(rand.NewPCG(*seed, *seed)))
	if err != nil {
		log.Fatal("生成测试数据失败:", err)
	}

	fmt.Println("测试数据生成完成！")
	fmt.Printf("习惯: %d 个\n", len(state.Habits))
	fmt.Printf("打卡记录: %d 条\n", len(state.Logs))
	fmt.Printf("等级: Lv.%d (%d xp)\n", state.User.Level, state.User.XP)
}

// seedDemoData 用可回拨的时钟驱动 Tracker，因此经验值与等级和真实打卡完全一致
func seedDemoData(ctx context.Context, store service.BlobStore, balance config.Balance, now time.Time, days int, rng *rand.Rand) (service.State, error) {
	if days <= 0 {
		days = 1
	}
	clock := datekey.NewFixedClock(now)
	tracker, err := service.NewTracker(ctx, store, service.OptionsFromBalance(balance, clock))
	if err != nil {
		return service.State{}, err
	}
	if err := tracker.Reset(ctx); err != nil {
		return service.State{}, err
	}

	clock.Set(now.AddDate(0, 0, -(days - 1)))
	for day := 0; day < days; day++ {
		if day > 0 {
			clock.AdvanceDays(1)
		}
		for _, habit := range tracker.Snapshot().Habits {
			// 周末稍微松懈一些
			chance := 0.75
			if weekday := clock.Now().Weekday(); weekday == time.Saturday || weekday == time.Sunday {
				chance = 0.5
			}
			if rng.Float64() >= chance {
				continue
			}
			if err := replayDay(ctx, tracker, habit, rng); err != nil {
				return service.State{}, fmt.Errorf("seed %s on day %d: %w", habit.ID, day, err)
			}
		}
	}
	return tracker.Snapshot(), nil
}

func replayDay(ctx context.Context, tracker *service.Tracker, habit db.Habit, rng *rand.Rand) error {
	if habit.Type == db.HabitTypeCheck || habit.Goal <= 1 {
		_, err := tracker.Toggle(ctx, habit.ID, 0)
		return err
	}
	// 计数或计时习惯分一到三次记录
	n := 1 + rng.IntN(3)
	for i := 0; i < n; i++ {
		if _, err := tracker.LogProgress(ctx, habit.ID, 1+rng.IntN(habit.Goal)); err != nil {
			return err
		}
	}
	return nil
}

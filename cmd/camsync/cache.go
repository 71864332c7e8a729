package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"camsync/internal/adapter/telegram"
	"camsync/internal/domain"
	"camsync/internal/usecase"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

func (a *app) runMap(ctx context.Context) error {
	reg, err := a.registry()
	if err != nil {
		return err
	}

	switch a.cfg.Action {
	case "add":
		m, err := reg.AddMapping(ctx, a.cfg.ServerPath, a.cfg.LocalPath, a.cfg.FileType)
		if err != nil {
			return err
		}
		fmt.Printf("Tracking %s -> %s (server modified %s)\n", m.ServerPath, m.LocalPath, m.LastServerModified.Format(time.DateTime))
		return nil

	case "check":
		res, err := reg.CheckForUpdate(ctx, a.cfg.LocalPath)
		if err != nil {
			return err
		}
		printResults([]domain.CheckResult{res})
		return nil

	case "check-all":
		results, err := reg.CheckAll(ctx, a.cfg.Workers)
		if err != nil {
			return err
		}
		printResults(results)
		return nil

	case "sync":
		m, err := reg.MarkAsSynced(ctx, a.cfg.LocalPath)
		if err != nil {
			return err
		}
		fmt.Printf("Marked %s as synced (%d syncs)\n", m.LocalPath, m.SyncCount)
		return nil

	case "remove":
		if err := reg.Remove(a.cfg.LocalPath); err != nil {
			return err
		}
		fmt.Printf("Stopped tracking %s\n", a.cfg.LocalPath)
		return nil

	case "list":
		mappings := reg.GetAll()
		if a.cfg.Status != "" {
			mappings = reg.GetByStatus(domain.MappingStatus(a.cfg.Status))
		}
		printMappings(mappings)
		return nil
	}
	return fmt.Errorf("unknown map action: %s", a.cfg.Action)
}

func printResults(results []domain.CheckResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tUPDATE\tLOCAL\tDETAIL")
	for _, r := range results {
		update := "no"
		if r.HasUpdate {
			update = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Status, update, r.LocalPath, r.Comparison.Reason)
	}
	w.Flush()
}

func printMappings(mappings []*domain.FileMapping) {
	if len(mappings) == 0 {
		fmt.Println("No mappings.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tLOCAL\tSERVER\tSIZE\tCHECKED\tSYNCS")
	for _, m := range mappings {
		checked := "never"
		if m.LastChecked != nil {
			checked = humanize.Time(*m.LastChecked)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			m.Status, m.LocalPath, m.ServerPath, humanize.IBytes(uint64(m.LastServerSize)), checked, m.SyncCount)
	}
	w.Flush()
}

// runUpdates raises notifications for a given path pair or for every
// outdated mapping, then walks the user through them.
func (a *app) runUpdates(ctx context.Context) error {
	reg, err := a.registry()
	if err != nil {
		return err
	}

	var notifier domain.Notifier
	if a.cfg.Notify {
		n, err := a.startNotifier(ctx)
		if err != nil {
			return err
		}
		notifier = n
	}
	mon := usecase.NewMonitor(a.fs, a.comparer(), reg, notifier, a.log)

	type pair struct{ server, local string }
	var pairs []pair
	if a.cfg.ServerPath != "" {
		pairs = append(pairs, pair{a.cfg.ServerPath, a.cfg.LocalPath})
	} else {
		results, err := reg.CheckAll(ctx, a.cfg.Workers)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.HasUpdate {
				pairs = append(pairs, pair{r.Comparison.ServerPath, r.LocalPath})
			}
		}
	}

	for _, p := range pairs {
		if _, err := mon.CreateUpdateNotification(ctx, p.server, p.local); err != nil {
			if errors.Is(err, domain.ErrNoUpdateAvailable) {
				a.log.Info("local copy already current", zap.String("local_path", p.local))
				continue
			}
			return err
		}
	}

	pending := mon.Pending()
	if len(pending) == 0 {
		fmt.Println("No updates pending.")
		return nil
	}

	var failed int
	for _, n := range pending {
		decision, err := a.console.ReviewUpdate(n)
		if err != nil {
			return fmt.Errorf("review failed: %w", err)
		}
		switch decision {
		case domain.DecisionApprove:
			done, err := mon.ApproveUpdate(ctx, n.ID)
			if err != nil {
				failed++
				a.log.Error("update not applied, local file unchanged", zap.String("local_path", n.LocalPath), zap.Error(err))
				continue
			}
			fmt.Printf("Updated %s", done.LocalPath)
			if done.BackupPath != "" {
				fmt.Printf(" (backup: %s)", done.BackupPath)
			}
			fmt.Println()
			if done.RegistryStale {
				fmt.Printf("  warning: cache registry not refreshed for %s, run a check again\n", done.LocalPath)
			}
		case domain.DecisionReject:
			if _, err := mon.RejectUpdate(n.ID); err != nil {
				return err
			}
			fmt.Printf("Kept %s\n", n.LocalPath)
		default:
			fmt.Printf("Skipped %s\n", n.LocalPath)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d update(s) failed", failed)
	}
	return nil
}

// startNotifier connects to Telegram and resolves the destination topic,
// asking the user when the ids were not given.
func (a *app) startNotifier(ctx context.Context) (*telegram.Notifier, error) {
	client, err := telegram.NewClient(a.cfg.AppID, a.cfg.AppHash, a.cfg.SessionPath, a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	var input telegram.AuthInput
	if !a.cfg.NonInteractive {
		input = a.console
	}
	a.log.Info("connecting to Telegram", zap.String("session", a.cfg.SessionPath))
	if err := client.Start(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to start telegram client: %w", err)
	}

	if a.cfg.GroupID == 0 {
		groups, err := client.ListGroups(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list groups: %w", err)
		}
		g, err := a.console.SelectGroup(groups)
		if err != nil {
			return nil, fmt.Errorf("group selection failed: %w", err)
		}
		a.cfg.GroupID = g.ID
	} else if err := client.ResolveGroup(ctx, a.cfg.GroupID); err != nil {
		return nil, fmt.Errorf("failed to resolve group: %w", err)
	}

	if a.cfg.TopicID == 0 {
		topics, err := client.ListTopics(ctx, a.cfg.GroupID)
		if err != nil {
			return nil, fmt.Errorf("failed to list topics: %w", err)
		}
		t, err := a.console.SelectTopic(topics)
		if err != nil {
			return nil, fmt.Errorf("topic selection failed: %w", err)
		}
		a.cfg.TopicID = t.ID
	}

	a.log.Info("notifications go to telegram", zap.Int64("group_id", a.cfg.GroupID), zap.Int64("topic_id", a.cfg.TopicID))
	return telegram.NewNotifier(client, a.cfg.GroupID, a.cfg.TopicID), nil
}

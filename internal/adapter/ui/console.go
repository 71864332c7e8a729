package ui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"camsync/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/manifoldco/promptui"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ErrNonInteractive is returned by prompts when the UI cannot ask the user.
var ErrNonInteractive = errors.New("prompt not available in non-interactive mode")

var (
	_ domain.ProgressReporter = (*ConsoleUI)(nil)
	_ domain.ApprovalUI       = (*ConsoleUI)(nil)
)

// ConsoleUI handles user interactions via the terminal.
type ConsoleUI struct {
	progress       *mpb.Progress
	nonInteractive bool
	out            io.Writer
	now            func() time.Time
}

func NewConsoleUI(nonInteractive bool) *ConsoleUI {
	var p *mpb.Progress
	if !nonInteractive {
		p = mpb.New(mpb.WithWidth(64))
	}
	return &ConsoleUI{
		progress:       p,
		nonInteractive: nonInteractive,
		out:            os.Stdout,
		now:            time.Now,
	}
}

// Progress Reporter Implementation

func (u *ConsoleUI) Start(name string, total int64) domain.ProgressTask {
	if u.nonInteractive {
		return &nonInteractiveTask{
			name:      name,
			total:     total,
			startTime: time.Now(),
			out:       u.out,
		}
	}

	bar := u.progress.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1}),
			decor.Counters(decor.SizeB1024(0), "% .2f / % .2f", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.OnComplete(
				decor.Percentage(decor.WCSyncSpace), "extracted",
			),
		),
	)
	return &mpbTask{bar: bar}
}

func (u *ConsoleUI) Wait() {
	if u.nonInteractive {
		return
	}
	u.progress.Wait()
	u.progress = mpb.New(mpb.WithWidth(64))
}

type mpbTask struct {
	bar *mpb.Bar
}

func (t *mpbTask) Increment(n int) {
	t.bar.IncrBy(n)
}

func (t *mpbTask) SetCurrent(current int64) {
	t.bar.SetCurrent(current)
}

func (t *mpbTask) Complete() {
	t.bar.SetTotal(-1, true)
}

type nonInteractiveTask struct {
	name      string
	total     int64
	current   int64
	startTime time.Time
	out       io.Writer
}

func (t *nonInteractiveTask) Increment(n int) {
	t.current += int64(n)
}

func (t *nonInteractiveTask) SetCurrent(current int64) {
	t.current = current
}

func (t *nonInteractiveTask) Complete() {
	fmt.Fprintf(t.out, "Extracted: %s | Size: %s | Took: %s\n",
		t.name,
		humanize.IBytes(uint64(t.current)),
		time.Since(t.startTime).Round(time.Millisecond),
	)
}

// Approval UI Implementation

var decisionItems = []struct {
	Label    string
	Decision domain.Decision
}{
	{"Approve: back up the local file and replace it with the server copy", domain.DecisionApprove},
	{"Reject: keep the local file", domain.DecisionReject},
	{"Skip: decide later", domain.DecisionSkip},
}

// ReviewUpdate shows a pending notification and asks for a decision. In
// non-interactive mode every notification is skipped.
func (u *ConsoleUI) ReviewUpdate(n domain.UpdateNotification) (domain.Decision, error) {
	fmt.Fprint(u.out, u.DescribeUpdate(n))
	if u.nonInteractive {
		return domain.DecisionSkip, nil
	}

	prompt := promptui.Select{
		Label: "Apply server update?",
		Items: decisionItems,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "\U0001F449 {{ .Label | cyan }}",
			Inactive: "  {{ .Label | white }}",
			Selected: "\U0001F44D {{ .Label | green }}",
		},
	}
	i, _, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return decisionItems[i].Decision, nil
}

// DescribeUpdate renders a notification for the terminal.
func (u *ConsoleUI) DescribeUpdate(n domain.UpdateNotification) string {
	now := u.now()
	local := "missing"
	if !n.LocalModified.IsZero() {
		local = fmt.Sprintf("%s (%s)", n.LocalModified.Format(time.DateTime), humanize.RelTime(n.LocalModified, now, "ago", "from now"))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\nUpdate %s\n", n.ID)
	fmt.Fprintf(&b, "  server: %s\n", n.ServerPath)
	fmt.Fprintf(&b, "  local:  %s\n", n.LocalPath)
	fmt.Fprintf(&b, "  server modified: %s (%s)\n", n.ServerModified.Format(time.DateTime), humanize.RelTime(n.ServerModified, now, "ago", "from now"))
	fmt.Fprintf(&b, "  local modified:  %s\n", local)
	if n.DiffDays > 0 {
		fmt.Fprintf(&b, "  server is %d days newer\n", n.DiffDays)
	}
	return b.String()
}

// SelectArchive asks the user to choose among archive candidates, typically
// when the newest ones share a modification time.
func (u *ConsoleUI) SelectArchive(candidates []domain.ArchiveCandidate) (domain.ArchiveCandidate, error) {
	if len(candidates) == 0 {
		return domain.ArchiveCandidate{}, errors.New("no archives available")
	}
	if u.nonInteractive {
		return domain.ArchiveCandidate{}, ErrNonInteractive
	}

	now := u.now()
	type item struct {
		Path string
		Info string
	}
	items := make([]item, len(candidates))
	for i, c := range candidates {
		items[i] = item{
			Path: c.Path,
			Info: fmt.Sprintf("%s, %s", humanize.IBytes(uint64(c.Size)), humanize.RelTime(c.Modified, now, "ago", "from now")),
		}
	}

	prompt := promptui.Select{
		Label: "Several archives share the newest modification time, select one",
		Items: items,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}?",
			Active:   "\U0001F449 {{ .Path | cyan }} ({{ .Info }})",
			Inactive: "  {{ .Path | white }} ({{ .Info }})",
			Selected: "\U0001F44D {{ .Path | green }}",
		},
		Size: 10,
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(items[index].Path), strings.ToLower(input))
		},
	}
	i, _, err := prompt.Run()
	if err != nil {
		return domain.ArchiveCandidate{}, err
	}
	return candidates[i], nil
}

// Telegram setup prompts

// GetPhoneNumber prompts the user for their phone number.
func (u *ConsoleUI) GetPhoneNumber() (string, error) {
	prompt := promptui.Prompt{
		Label: "Enter Phone Number (international format, e.g. +39...)",
		Validate: func(input string) error {
			if len(input) < 5 {
				return errors.New("phone number too short")
			}
			return nil
		},
	}
	return prompt.Run()
}

// GetCode prompts the user for the authentication code.
func (u *ConsoleUI) GetCode() (string, error) {
	prompt := promptui.Prompt{
		Label: "Enter Code",
		Validate: func(input string) error {
			if len(input) == 0 {
				return errors.New("code cannot be empty")
			}
			return nil
		},
	}
	return prompt.Run()
}

// GetPassword prompts the user for their 2FA password.
func (u *ConsoleUI) GetPassword() (string, error) {
	prompt := promptui.Prompt{
		Label: "Enter 2FA Password",
		Mask:  '*',
	}
	return prompt.Run()
}

// SelectGroup prompts the user to pick the group that receives notifications.
func (u *ConsoleUI) SelectGroup(groups []domain.Group) (domain.Group, error) {
	i, err := u.selectTitled("Select Group", len(groups), func(i int) string { return groups[i].Title })
	if err != nil {
		return domain.Group{}, err
	}
	return groups[i], nil
}

// SelectTopic prompts the user to pick the topic that receives notifications.
func (u *ConsoleUI) SelectTopic(topics []domain.Topic) (domain.Topic, error) {
	i, err := u.selectTitled("Select Topic", len(topics), func(i int) string { return topics[i].Title })
	if err != nil {
		return domain.Topic{}, err
	}
	return topics[i], nil
}

func (u *ConsoleUI) selectTitled(label string, n int, title func(int) string) (int, error) {
	if n == 0 {
		return 0, fmt.Errorf("%s: nothing to choose from", strings.ToLower(label))
	}
	if u.nonInteractive {
		return 0, ErrNonInteractive
	}
	titles := make([]string, n)
	for i := range titles {
		titles[i] = title(i)
	}
	prompt := promptui.Select{
		Label: label,
		Items: titles,
		Size:  10,
		Searcher: func(input string, index int) bool {
			name := strings.ReplaceAll(strings.ToLower(titles[index]), " ", "")
			input = strings.ReplaceAll(strings.ToLower(input), " ", "")
			return strings.Contains(name, input)
		},
	}
	i, _, err := prompt.Run()
	return i, err
}

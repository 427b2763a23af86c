// Package ui renders the focus popup in the terminal with bubbletea.
package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/ezchuang/focuspopup/internal/core"
	"github.com/ezchuang/focuspopup/internal/media"
	"github.com/ezchuang/focuspopup/internal/notify"
)

const (
	frameInterval = 60 * time.Millisecond
	tickInterval  = 200 * time.Millisecond
	appTitle      = "focuspopup"
)

// Controller is the part of core.Controller the UI drives.
type Controller interface {
	State() core.State
	Remaining() time.Duration
	Dismiss()
	ImageLoaded(seq uint64, err error)
	SetOnChange(fn func(core.State))
}

// ImageLoader fetches and decodes a popup image.
type ImageLoader interface {
	Load(ctx context.Context, src string) (image.Image, error)
}

// Chime plays the popup sound.
type Chime interface {
	Play(path string) error
}

// Options are the configurable parts of the popup.
type Options struct {
	Width          int
	ImageMaxWidth  int
	ImageMaxHeight int
	ExitAnimation  time.Duration
	Desktop        bool
	Sound          string
}

// Model is the bubbletea model hosting the popup.
type Model struct {
	ctrl     Controller
	focus    core.FocusContext
	loader   ImageLoader
	notifier notify.Notifier
	chime    Chime
	logger   logrus.FieldLogger
	opts     Options

	keys     KeyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model

	width  int
	height int

	state     core.State
	image     ImageStatus
	thumbnail string
	closing   int
	lastShown time.Time
	quit      bool
}

func NewModel(ctrl Controller, focus core.FocusContext, loader ImageLoader, notifier notify.Notifier, chime Chime, opts Options, logger logrus.FieldLogger) *Model {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &Model{
		ctrl:     ctrl,
		focus:    focus,
		loader:   loader,
		notifier: notifier,
		chime:    chime,
		logger:   logger.WithField("component", "ui"),
		opts:     opts,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		state:    ctrl.State(),
	}
}

// Run starts the program and feeds it controller changes and option updates
// until the user quits or ctx is cancelled.
func Run(ctx context.Context, m *Model, options <-chan Options) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.ctrl.SetOnChange(func(st core.State) {
		p.Send(stateMsg(st))
	})
	defer m.ctrl.SetOnChange(nil)

	// catch up on anything shown before the callback was installed; a newer
	// snapshot from the callback may overtake it and applyState drops it then
	go p.Send(stateMsg(m.ctrl.State()))

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case opts, ok := <-options:
				if !ok {
					return
				}
				p.Send(optionsMsg(opts))
			}
		}
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// OptionsMsg wraps opts in a message that replaces the model's options.
func OptionsMsg(opts Options) tea.Msg { return optionsMsg(opts) }

type (
	stateMsg   core.State
	optionsMsg Options
	tickMsg    time.Time
	fadeMsg    struct{ seq uint64 }
	imageMsg   struct {
		seq uint64
		img image.Image
		err error
	}
)

func (m *Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fadeCmd(seq uint64) tea.Cmd {
	return tea.Tick(frameInterval, func(time.Time) tea.Msg {
		return fadeMsg{seq: seq}
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quit = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Close), key.Matches(msg, m.keys.Dismiss):
			if m.state.IsOpen {
				return m, m.dismissCmd()
			}
		}

	case stateMsg:
		return m, m.applyState(core.State(msg))

	case imageMsg:
		if msg.seq != m.state.Seq {
			return m, nil
		}
		if msg.err != nil {
			m.image = ImageFailed
			m.thumbnail = ""
		} else {
			m.image = ImageReady
			m.thumbnail = renderThumbnail(msg.img, m.opts)
		}

	case fadeMsg:
		if msg.seq == m.state.Seq && m.closing > 0 {
			m.closing--
			if m.closing > 0 {
				return m, fadeCmd(msg.seq)
			}
		}

	case spinner.TickMsg:
		if m.image != ImagePending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case optionsMsg:
		m.opts = Options(msg)

	case tickMsg:
		return m, tickCmd()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	}
	return m, nil
}

// applyState reconciles the view with a controller snapshot and returns the
// side effects a new popup needs.
func (m *Model) applyState(st core.State) tea.Cmd {
	prev := m.state
	if st.Rev < prev.Rev || st.Seq < prev.Seq {
		m.logger.WithFields(logrus.Fields{"rev": st.Rev, "seq": st.Seq}).Debug("dropping stale state")
		return nil
	}
	m.state = st

	if st.IsOpen && st.Seq != prev.Seq {
		m.closing = 0
		m.thumbnail = ""
		m.lastShown = st.ShownAt

		var cmds []tea.Cmd
		if st.Notification.HasImage() && m.loader != nil {
			m.image = ImagePending
			cmds = append(cmds, m.loadImageCmd(st.Seq, st.Notification.MediaContent), m.spinner.Tick)
		} else {
			m.image = ImageNone
		}
		if m.opts.Desktop {
			cmds = append(cmds, m.desktopCmd(*st.Notification))
		}
		if m.opts.Sound != "" && m.chime != nil {
			cmds = append(cmds, m.chimeCmd(m.opts.Sound))
		}
		return tea.Batch(cmds...)
	}

	if prev.IsOpen && !st.IsOpen && st.Seq == prev.Seq {
		m.closing = exitFrames(m.opts.ExitAnimation)
		if m.closing > 0 {
			return fadeCmd(st.Seq)
		}
	}
	return nil
}

func exitFrames(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	n := int(d / frameInterval)
	if n < 1 {
		n = 1
	}
	return n
}

// controller calls go through commands: they report back via Program.Send,
// which must not be called from inside Update.
func (m *Model) dismissCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.Dismiss()
		return nil
	}
}

func (m *Model) loadImageCmd(seq uint64, src string) tea.Cmd {
	ctrl, loader := m.ctrl, m.loader
	return func() tea.Msg {
		img, err := loader.Load(context.Background(), src)
		ctrl.ImageLoaded(seq, err)
		return imageMsg{seq: seq, img: img, err: err}
	}
}

func (m *Model) desktopCmd(n core.NotificationData) tea.Cmd {
	notifier, logger := m.notifier, m.logger
	icon := ""
	if n.HasImage() && filepath.IsAbs(n.MediaContent) {
		icon = n.MediaContent
	}
	return func() tea.Msg {
		if err := notifier.Notify(n.Title, n.RenderedBody(), icon); err != nil {
			logger.WithError(err).Warn("desktop notification failed")
		}
		return nil
	}
}

func (m *Model) chimeCmd(path string) tea.Cmd {
	chime, logger := m.chime, m.logger
	return func() tea.Msg {
		if err := chime.Play(path); err != nil {
			logger.WithError(err).WithField("sound", path).Warn("chime failed")
		}
		return nil
	}
}

func renderThumbnail(img image.Image, opts Options) string {
	w := min(opts.ImageMaxWidth, opts.Width-6)
	return media.Thumbnail(img, w, opts.ImageMaxHeight)
}

// visible reports whether the dialog is on screen, including its exit
// animation.
func (m *Model) visible() bool {
	return m.state.Notification != nil && (m.state.IsOpen || m.closing > 0)
}

func (m *Model) dialogView() DialogView {
	v := DialogView{
		Notification: m.state.Notification,
		Image:        m.image,
		Thumbnail:    m.thumbnail,
		Spinner:      m.spinner.View(),
		Help:         m.help.View(m.keys),
	}
	if m.focus != nil {
		if q, ok := core.Quote(m.focus.CustomText()); ok {
			v.Quote = q
		}
	}
	if m.state.IsOpen {
		total := m.state.DismissAt.Sub(m.state.ShownAt)
		if total > 0 {
			ratio := float64(m.ctrl.Remaining()) / float64(total)
			m.progress.Width = m.opts.Width - 6
			v.Countdown = m.progress.ViewAs(ratio)
		}
	} else if frames := exitFrames(m.opts.ExitAnimation); frames > 0 {
		v.Fade = 1 - float64(m.closing)/float64(frames+1)
	}
	return v
}

func (m *Model) View() string {
	if m.quit {
		return ""
	}

	var content string
	if m.visible() {
		content = RenderDialog(m.dialogView(), m.opts.Width)
	} else {
		content = m.idleView()
	}

	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) idleView() string {
	title := lipgloss.NewStyle().Bold(true).Underline(true).Render(appTitle)

	last := "No popups yet."
	if !m.lastShown.IsZero() {
		last = fmt.Sprintf("Last popup %s.", humanize.Time(m.lastShown))
	}

	hint := faintStyle.Render("waiting for focus-mode signals  [q] quit")

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(1, 2).
		Render(fmt.Sprintf("%s\n\nFocus mode is watching.\n%s\n\n%s", title, last, hint))
}

package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
	"github.com/applyflow/ds160-runner/internal/config"
	"github.com/applyflow/ds160-runner/internal/store"
)

// fakeDriver is a scripted BrowserDriver for orchestration tests. Visibility,
// text, and URL are plain maps the test mutates; OnClick lets a test swap
// page state when an advance fires, standing in for a real page transition.
type fakeDriver struct {
	mu sync.Mutex

	Visible map[string]bool
	Texts   map[string]string
	AllText map[string][]string
	URL     string

	Filled    map[string]string
	Selected  map[string]string
	Checked   map[string]bool
	Clicks    []string
	Navigated []string

	FillErr    map[string]error
	ClickErr   map[string]error
	IdleErr    error
	Screenshot2 error

	OnClick func(d *fakeDriver, selector string)
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		Visible:  map[string]bool{},
		Texts:    map[string]string{},
		AllText:  map[string][]string{},
		Filled:   map[string]string{},
		Selected: map[string]string{},
		Checked:  map[string]bool{},
		FillErr:  map[string]error{},
		ClickErr: map[string]error{},
	}
}

var _ schemas.BrowserDriver = (*fakeDriver)(nil)

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Navigated = append(d.Navigated, url)
	d.URL = url
	return nil
}

func (d *fakeDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Visible[selector], nil
}

func (d *fakeDriver) Fill(ctx context.Context, selector, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.FillErr[selector]; err != nil {
		return err
	}
	d.Filled[selector] = text
	return nil
}

func (d *fakeDriver) SelectOption(ctx context.Context, selector, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Selected[selector] = value
	return nil
}

func (d *fakeDriver) Click(ctx context.Context, selector string) error {
	d.mu.Lock()
	if err := d.ClickErr[selector]; err != nil {
		d.mu.Unlock()
		return err
	}
	d.Clicks = append(d.Clicks, selector)
	hook := d.OnClick
	d.mu.Unlock()
	if hook != nil {
		hook(d, selector)
	}
	return nil
}

func (d *fakeDriver) SetChecked(ctx context.Context, selector string, checked bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Checked[selector] = checked
	return nil
}

func (d *fakeDriver) WaitNetworkIdle(ctx context.Context, quiet, timeout time.Duration) error {
	return d.IdleErr
}

func (d *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	if d.Screenshot2 != nil {
		return nil, d.Screenshot2
	}
	return []byte("png"), nil
}

func (d *fakeDriver) ScreenshotElement(ctx context.Context, selector string) ([]byte, error) {
	return []byte("png-" + selector), nil
}

func (d *fakeDriver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.URL, nil
}

func (d *fakeDriver) Text(ctx context.Context, selector string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if text, ok := d.Texts[selector]; ok {
		return text, nil
	}
	return "", fmt.Errorf("no text for %q", selector)
}

func (d *fakeDriver) TextAll(ctx context.Context, selector string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.AllText[selector], nil
}

func (d *fakeDriver) Close(ctx context.Context) error { return nil }

// setVisible is a lock-safe mutator for OnClick hooks.
func (d *fakeDriver) setVisible(selector string, visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Visible[selector] = visible
}

func (d *fakeDriver) setURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.URL = url
}

// fakeArtifacts keeps stored blobs in memory.
type fakeArtifacts struct {
	mu     sync.Mutex
	Stored []schemas.ArtifactMeta
}

var _ schemas.ArtifactStore = (*fakeArtifacts)(nil)

func (a *fakeArtifacts) Store(ctx context.Context, data []byte, meta schemas.ArtifactMeta) (*schemas.Artifact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Stored = append(a.Stored, meta)
	id := uuid.New()
	return &schemas.Artifact{ID: id, PublicURL: "mem://" + meta.Kind + "/" + id.String()}, nil
}

func (a *fakeArtifacts) kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var kinds []string
	for _, meta := range a.Stored {
		kinds = append(kinds, meta.Kind)
	}
	return kinds
}

// testConfig returns a config with timings shrunk for tests.
func testConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			WorkerConcurrency:  1,
			FieldRevealTimeout: 50 * time.Millisecond,
			FieldTimeout:       50 * time.Millisecond,
		},
		Postback: config.PostbackConfig{
			IdleTimeout: 100 * time.Millisecond,
			QuietPeriod: 10 * time.Millisecond,
			SettleDelay: 20 * time.Millisecond,
		},
		Captcha: config.CaptchaConfig{
			PollInterval: 10 * time.Millisecond,
			Timeout:      200 * time.Millisecond,
			ChallengeTTL: time.Minute,
			RejectionCap: 3,
		},
		Browser: config.BrowserConfig{StartURL: "https://example.test/Default.aspx"},
	}
}

func newTestStore() *store.MemoryStore {
	return store.NewMemoryStore(time.Minute, zap.NewNop())
}

// pkg/tabs/driver_test.go
package tabs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/inquilabee/browsertabs/internal/utils"
)

// fakeDriver implements Driver in memory so the tab bookkeeping can be
// tested without Chrome. Operations append to an op log the tests assert
// against.
type fakeDriver struct {
	mu      sync.Mutex
	started bool
	nextID  int
	targets []*fakeTarget
	focused TargetID

	ops []string

	evalResults map[string]any
	evalSeq     map[string][]any
	evalErrs    map[string]error

	queryResults map[string][]NodeRef
	failClicks   map[ClickStrategy]error

	navErr         error
	newTargetErr   error
	waitErr        error
	lastNavTimeout time.Duration
	lastUserAgent  string

	html       string
	screenshot []byte
	centerX    float64
	centerY    float64
}

type fakeTarget struct {
	id  TargetID
	url string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		evalResults:  make(map[string]any),
		evalSeq:      make(map[string][]any),
		evalErrs:     make(map[string]error),
		queryResults: make(map[string][]NodeRef),
		failClicks:   make(map[ClickStrategy]error),
		screenshot:   []byte("fake-png"),
		centerX:      100,
		centerY:      50,
	}
}

func (d *fakeDriver) log(format string, args ...any) {
	d.ops = append(d.ops, fmt.Sprintf(format, args...))
}

func (d *fakeDriver) opCount(prefix string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	count := 0
	for _, op := range d.ops {
		if strings.HasPrefix(op, prefix) {
			count++
		}
	}
	return count
}

func (d *fakeDriver) opsWithPrefix(prefix string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []string
	for _, op := range d.ops {
		if strings.HasPrefix(op, prefix) {
			out = append(out, op)
		}
	}
	return out
}

func (d *fakeDriver) hasOp(op string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, logged := range d.ops {
		if logged == op {
			return true
		}
	}
	return false
}

func (d *fakeDriver) addTarget(url string) TargetID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := TargetID(fmt.Sprintf("t%d", d.nextID))
	d.targets = append(d.targets, &fakeTarget{id: id, url: url})
	return id
}

func (d *fakeDriver) removeTarget(id TargetID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, ft := range d.targets {
		if ft.id == id {
			d.targets = append(d.targets[:i], d.targets[i+1:]...)
			break
		}
	}
	if d.focused == id {
		d.focused = ""
	}
}

func (d *fakeDriver) find(id TargetID) *fakeTarget {
	for _, ft := range d.targets {
		if ft.id == id {
			return ft
		}
	}
	return nil
}

func (d *fakeDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}
	d.started = true
	if len(d.targets) == 0 {
		d.nextID++
		id := TargetID(fmt.Sprintf("t%d", d.nextID))
		d.targets = append(d.targets, &fakeTarget{id: id, url: "about:blank"})
		d.focused = id
	}
	return nil
}

func (d *fakeDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.started = false
	d.targets = nil
	d.focused = ""
	d.log("stop")
	return nil
}

func (d *fakeDriver) Targets(ctx context.Context) ([]TargetInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]TargetInfo, 0, len(d.targets))
	for _, ft := range d.targets {
		out = append(out, TargetInfo{ID: ft.id, URL: ft.url, Attached: true})
	}
	return out, nil
}

func (d *fakeDriver) FocusedTarget(ctx context.Context) (TargetID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.focused == "" {
		return "", utils.NewError(utils.ErrCodeTabNotFound, "no focused tab").Build()
	}
	return d.focused, nil
}

func (d *fakeDriver) NewTarget(ctx context.Context, url string) (TargetID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.newTargetErr != nil {
		return "", d.newTargetErr
	}
	if url == "" {
		url = "about:blank"
	}
	d.nextID++
	id := TargetID(fmt.Sprintf("t%d", d.nextID))
	d.targets = append(d.targets, &fakeTarget{id: id, url: url})
	d.log("new:%s", url)
	return id, nil
}

func (d *fakeDriver) CloseTarget(ctx context.Context, id TargetID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ft := d.find(id)
	if ft == nil {
		return utils.NewError(utils.ErrCodeTabNotFound, "no such target").Build()
	}
	for i, existing := range d.targets {
		if existing.id == id {
			d.targets = append(d.targets[:i], d.targets[i+1:]...)
			break
		}
	}
	if d.focused == id {
		d.focused = ""
	}
	d.log("close:%s", id)
	return nil
}

func (d *fakeDriver) ActivateTarget(ctx context.Context, id TargetID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.find(id) == nil {
		return utils.NewError(utils.ErrCodeTabNotFound, "no such target").Build()
	}
	d.focused = id
	d.log("activate:%s", id)
	return nil
}

func (d *fakeDriver) Navigate(ctx context.Context, id TargetID, url string, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastNavTimeout = timeout
	d.log("navigate:%s:%s", id, url)
	if d.navErr != nil {
		return d.navErr
	}
	if ft := d.find(id); ft != nil {
		ft.url = url
	}
	return nil
}

func (d *fakeDriver) Reload(ctx context.Context, id TargetID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("reload:%s", id)
	return nil
}

func (d *fakeDriver) Back(ctx context.Context, id TargetID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("back:%s", id)
	return nil
}

func (d *fakeDriver) Forward(ctx context.Context, id TargetID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("forward:%s", id)
	return nil
}

func (d *fakeDriver) StopLoading(ctx context.Context, id TargetID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("stoploading:%s", id)
	return nil
}

// Evaluate mimics the page: expressions resolve through the result tables,
// and an unknown expression with a non-nil out behaves like undefined.
func (d *fakeDriver) Evaluate(ctx context.Context, id TargetID, js string, out any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.log("eval:%s", js)
	if err := d.evalErrs[js]; err != nil {
		return err
	}
	if seq, ok := d.evalSeq[js]; ok && len(seq) > 0 {
		value := seq[0]
		d.evalSeq[js] = seq[1:]
		return assignJSON(out, value)
	}
	if value, ok := d.evalResults[js]; ok {
		return assignJSON(out, value)
	}
	if out == nil {
		return nil
	}
	return fmt.Errorf("encountered an undefined value for %q", js)
}

func assignJSON(out, value any) error {
	if out == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (d *fakeDriver) HTML(ctx context.Context, id TargetID) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("html:%s", id)
	return d.html, nil
}

func (d *fakeDriver) Screenshot(ctx context.Context, id TargetID) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("screenshot:%s", id)
	return d.screenshot, nil
}

func (d *fakeDriver) SetUserAgent(ctx context.Context, id TargetID, userAgent string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastUserAgent = userAgent
	d.log("ua:%s", userAgent)
	return nil
}

func (d *fakeDriver) SendKeyEvent(ctx context.Context, id TargetID, keys string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("key:%s", keys)
	return nil
}

func (d *fakeDriver) QueryNodes(ctx context.Context, id TargetID, selector string) ([]NodeRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("query:%s", selector)
	return d.queryResults[selector], nil
}

func (d *fakeDriver) NodeCenter(ctx context.Context, id TargetID, selector string, index int) (float64, float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("center:%s:%d", selector, index)
	return d.centerX, d.centerY, nil
}

func (d *fakeDriver) ClickNode(ctx context.Context, id TargetID, selector string, index int, strategy ClickStrategy) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.log("click:%s:%s:%d", strategy, selector, index)
	return d.failClicks[strategy]
}

func (d *fakeDriver) ClickPoint(ctx context.Context, id TargetID, x, y float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("clickxy:%g,%g", x, y)
	return nil
}

func (d *fakeDriver) SendKeys(ctx context.Context, id TargetID, selector string, index int, keys string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("sendkeys:%s:%d:%s", selector, index, keys)
	return nil
}

func (d *fakeDriver) Clear(ctx context.Context, id TargetID, selector string, index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("clear:%s:%d", selector, index)
	return nil
}

func (d *fakeDriver) WaitFor(ctx context.Context, id TargetID, selector string, cond WaitCondition) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("waitfor:%s:%s", cond, selector)
	return d.waitErr
}

// newTestBrowser builds a session on the fake driver with quiet logging.
func newTestBrowser(t *testing.T, d *fakeDriver, opts ...Option) *Browser {
	t.Helper()

	opts = append(opts,
		withDriver(d),
		WithLogger(utils.NewLoggerWithOutput(utils.ErrorLevel, io.Discard)),
	)
	b, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

// Package computetest wraps a compute.Runtime to inject failures at chosen
// steps and to record every resource acquisition and release.
package computetest

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"OpenCLGray/internal/compute"
)

// Step names an injectable call.
type Step string

const (
	StepNone         Step = ""
	StepPlatforms    Step = "platforms"
	StepContext      Step = "context"
	StepQueue        Step = "queue"
	StepProgram      Step = "program"
	StepBuild        Step = "build"
	StepKernel       Step = "kernel"
	StepInputBuffer  Step = "input-buffer"
	StepOutputBuffer Step = "output-buffer"
	StepSetArg       Step = "set-arg"
	StepEnqueue      Step = "enqueue"
	StepRead         Step = "read"
)

// ErrInjected is returned by the failing step.
var ErrInjected = errors.New("injected failure")

// BuildLog is the compiler log attached to an injected build failure.
const BuildLog = "<kernel>:3:5: error: injected compiler diagnostic"

// Faulty delegates to Inner, failing at FailAt and recording events.
type Faulty struct {
	Inner  compute.Runtime
	FailAt Step

	mu     sync.Mutex
	events []string
}

// Wrap returns a recorder around rt that fails at step.
func Wrap(rt compute.Runtime, step Step) *Faulty {
	return &Faulty{Inner: rt, FailAt: step}
}

func (f *Faulty) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, fmt.Sprintf(format, args...))
}

func (f *Faulty) fail(s Step) error {
	if f.FailAt == s {
		return fmt.Errorf("%s: %w", s, ErrInjected)
	}
	return nil
}

// Events returns the recorded "acquire:<kind>" and "release:<kind>" events in order.
func (f *Faulty) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// ReleaseOrder is the order in which a session gives resources back.
var ReleaseOrder = []string{"input", "output", "kernel", "program", "queue", "context"}

// Released returns the resource kinds in the order they were released.
func (f *Faulty) Released() []string {
	var out []string
	for _, e := range f.Events() {
		if op, kind, _ := strings.Cut(e, ":"); op == "release" {
			out = append(out, kind)
		}
	}
	return out
}

// CheckReleases reports leaked or doubly released resources and any release
// sequence that departs from ReleaseOrder restricted to what was acquired.
func (f *Faulty) CheckReleases() error {
	leaked, doubled := f.Leaks()
	if len(leaked) > 0 || len(doubled) > 0 {
		return fmt.Errorf("leaked %v, released twice or never acquired %v (events %v)", leaked, doubled, f.Events())
	}
	acquired := map[string]bool{}
	for _, e := range f.Events() {
		if op, kind, _ := strings.Cut(e, ":"); op == "acquire" {
			acquired[kind] = true
		}
	}
	var want []string
	for _, kind := range ReleaseOrder {
		if acquired[kind] {
			want = append(want, kind)
		}
	}
	if got := f.Released(); !slices.Equal(got, want) {
		return fmt.Errorf("release order %v, want %v", got, want)
	}
	return nil
}

// Leaks returns the resources acquired but not released, and those released
// more than once or never acquired.
func (f *Faulty) Leaks() (leaked, doubled []string) {
	live := map[string]int{}
	for _, e := range f.Events() {
		op, kind, _ := strings.Cut(e, ":")
		switch op {
		case "acquire":
			live[kind]++
		case "release":
			live[kind]--
			if live[kind] < 0 {
				doubled = append(doubled, kind)
			}
		}
	}
	for kind, n := range live {
		if n > 0 {
			leaked = append(leaked, kind)
		}
	}
	return leaked, doubled
}

func (f *Faulty) Name() string { return f.Inner.Name() }

func (f *Faulty) Platforms() ([]compute.Platform, error) {
	if err := f.fail(StepPlatforms); err != nil {
		return nil, err
	}
	return f.Inner.Platforms()
}

func (f *Faulty) CreateContext(d compute.Device) (compute.Context, error) {
	if err := f.fail(StepContext); err != nil {
		return nil, err
	}
	c, err := f.Inner.CreateContext(d)
	if err != nil {
		return nil, err
	}
	f.record("acquire:context")
	return &context{f: f, inner: c}, nil
}

type context struct {
	f     *Faulty
	inner compute.Context
}

func (c *context) CreateQueue(d compute.Device) (compute.Queue, error) {
	if err := c.f.fail(StepQueue); err != nil {
		return nil, err
	}
	q, err := c.inner.CreateQueue(d)
	if err != nil {
		return nil, err
	}
	c.f.record("acquire:queue")
	return &queue{f: c.f, inner: q}, nil
}

func (c *context) CreateProgram(source string) (compute.Program, error) {
	if err := c.f.fail(StepProgram); err != nil {
		return nil, err
	}
	p, err := c.inner.CreateProgram(source)
	if err != nil {
		return nil, err
	}
	c.f.record("acquire:program")
	return &program{f: c.f, inner: p}, nil
}

func (c *context) CreateBuffer(flags compute.MemFlags, data []byte) (compute.Buffer, error) {
	if err := c.f.fail(StepInputBuffer); err != nil {
		return nil, err
	}
	b, err := c.inner.CreateBuffer(flags, data)
	if err != nil {
		return nil, err
	}
	c.f.record("acquire:input")
	return &buffer{f: c.f, inner: b, kind: "input"}, nil
}

func (c *context) CreateEmptyBuffer(flags compute.MemFlags, size int) (compute.Buffer, error) {
	if err := c.f.fail(StepOutputBuffer); err != nil {
		return nil, err
	}
	b, err := c.inner.CreateEmptyBuffer(flags, size)
	if err != nil {
		return nil, err
	}
	c.f.record("acquire:output")
	return &buffer{f: c.f, inner: b, kind: "output"}, nil
}

func (c *context) Release() {
	c.f.record("release:context")
	c.inner.Release()
}

type program struct {
	f     *Faulty
	inner compute.Program
}

func (p *program) Build(d compute.Device, options string) error {
	if err := p.f.fail(StepBuild); err != nil {
		return &compute.BuildError{Log: BuildLog}
	}
	return p.inner.Build(d, options)
}

func (p *program) CreateKernel(name string) (compute.Kernel, error) {
	if err := p.f.fail(StepKernel); err != nil {
		return nil, err
	}
	k, err := p.inner.CreateKernel(name)
	if err != nil {
		return nil, err
	}
	p.f.record("acquire:kernel")
	return &kernel{f: p.f, inner: k}, nil
}

func (p *program) Release() {
	p.f.record("release:program")
	p.inner.Release()
}

type kernel struct {
	f     *Faulty
	inner compute.Kernel
}

func (k *kernel) SetArgBuffer(index int, b compute.Buffer) error {
	if err := k.f.fail(StepSetArg); err != nil {
		return err
	}
	if wb, ok := b.(*buffer); ok {
		b = wb.inner
	}
	return k.inner.SetArgBuffer(index, b)
}

func (k *kernel) SetArgInt32(index int, v int32) error {
	if err := k.f.fail(StepSetArg); err != nil {
		return err
	}
	return k.inner.SetArgInt32(index, v)
}

func (k *kernel) Release() {
	k.f.record("release:kernel")
	k.inner.Release()
}

type queue struct {
	f     *Faulty
	inner compute.Queue
}

func (q *queue) EnqueueNDRangeKernel(k compute.Kernel, global, local []int) error {
	if err := q.f.fail(StepEnqueue); err != nil {
		return err
	}
	if wk, ok := k.(*kernel); ok {
		k = wk.inner
	}
	return q.inner.EnqueueNDRangeKernel(k, global, local)
}

func (q *queue) ReadBuffer(b compute.Buffer, dst []byte) error {
	if err := q.f.fail(StepRead); err != nil {
		return err
	}
	if wb, ok := b.(*buffer); ok {
		b = wb.inner
	}
	return q.inner.ReadBuffer(b, dst)
}

func (q *queue) Finish() error { return q.inner.Finish() }

func (q *queue) Release() {
	q.f.record("release:queue")
	q.inner.Release()
}

type buffer struct {
	f     *Faulty
	inner compute.Buffer
	kind  string
}

func (b *buffer) Size() int { return b.inner.Size() }

func (b *buffer) Release() {
	b.f.record("release:%s", b.kind)
	b.inner.Release()
}

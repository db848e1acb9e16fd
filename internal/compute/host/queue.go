package host

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"OpenCLGray/internal/compute"
)

type queue struct {
	ctx *context

	mu       sync.Mutex
	inflight []*launch
	released bool
}

type launch struct {
	done chan struct{}
	err  error
}

// EnqueueNDRangeKernel validates the launch the way an OpenCL runtime would,
// snapshots the kernel arguments and starts execution in the background.
// Launches on one queue execute in order.
func (q *queue) EnqueueNDRangeKernel(k compute.Kernel, global, local []int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return errReleased
	}

	hk, ok := k.(*kernel)
	if !ok || hk.ctx != q.ctx {
		return errors.New("invalid kernel for this queue")
	}
	if hk.released {
		return errReleased
	}
	g, l, err := normalizeRange(global, local, q.ctx.dev.caps.MaxWorkGroupSize)
	if err != nil {
		return err
	}
	args := make([]any, len(hk.args))
	for i, v := range hk.args {
		if v == nil {
			return fmt.Errorf("invalid kernel args: argument %d of %s is not set", i, hk.name)
		}
		args[i] = v
	}

	var prev *launch
	if n := len(q.inflight); n > 0 {
		prev = q.inflight[n-1]
	}
	cur := &launch{done: make(chan struct{})}
	q.inflight = append(q.inflight, cur)

	go func() {
		defer close(cur.done)
		if prev != nil {
			<-prev.done
		}
		cur.err = execute(hk.fn, Args{values: args}, g, l, q.ctx.dev.caps.MaxComputeUnits)
	}()
	return nil
}

// normalizeRange pads global and local sizes to three dimensions.
func normalizeRange(global, local []int, maxGroup int) (g, l [3]int, err error) {
	if len(global) < 1 || len(global) > 3 {
		return g, l, fmt.Errorf("invalid work dimension %d", len(global))
	}
	if local != nil && len(local) != len(global) {
		return g, l, fmt.Errorf("local size has %d dimensions, global has %d", len(local), len(global))
	}
	g, l = [3]int{1, 1, 1}, [3]int{1, 1, 1}
	groupSize := 1
	for i := range global {
		g[i] = global[i]
		if local != nil {
			l[i] = local[i]
		}
		if g[i] <= 0 {
			return g, l, fmt.Errorf("invalid global work size %d in dimension %d", g[i], i)
		}
		if l[i] <= 0 || g[i]%l[i] != 0 {
			return g, l, fmt.Errorf("invalid work group size: global %d is not a multiple of local %d in dimension %d", g[i], l[i], i)
		}
		groupSize *= l[i]
	}
	if groupSize > maxGroup {
		return g, l, fmt.Errorf("invalid work group size: %d work-items exceeds device maximum %d", groupSize, maxGroup)
	}
	return g, l, nil
}

func execute(fn KernelFunc, args Args, global, local [3]int, units int) (err error) {
	groups := [3]int{global[0] / local[0], global[1] / local[1], global[2] / local[2]}

	var eg errgroup.Group
	if units > 0 {
		eg.SetLimit(units)
	}
	for gz := 0; gz < groups[2]; gz++ {
		for gy := 0; gy < groups[1]; gy++ {
			for gx := 0; gx < groups[0]; gx++ {
				group := [3]int{gx, gy, gz}
				eg.Go(func() error {
					return runGroup(fn, args, group, local)
				})
			}
		}
	}
	err = eg.Wait()

	for _, v := range args.values {
		if m, ok := v.(*Memory); ok {
			if ferr := m.takeFaults(); ferr != nil {
				err = errors.Join(err, ferr)
			}
		}
	}
	return err
}

func runGroup(fn KernelFunc, args Args, group, local [3]int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kernel panic in work-group %v: %v", group, r)
		}
	}()
	var wi WorkItem
	wi.Group = group
	for lz := 0; lz < local[2]; lz++ {
		for ly := 0; ly < local[1]; ly++ {
			for lx := 0; lx < local[0]; lx++ {
				wi.Local = [3]int{lx, ly, lz}
				wi.Global = [3]int{
					group[0]*local[0] + lx,
					group[1]*local[1] + ly,
					group[2]*local[2] + lz,
				}
				fn(wi, args)
			}
		}
	}
	return nil
}

// ReadBuffer blocks until every queued launch has finished, then copies b
// into dst.
func (q *queue) ReadBuffer(b compute.Buffer, dst []byte) error {
	if err := q.Finish(); err != nil {
		return err
	}
	m, ok := b.(*Memory)
	if !ok || m.ctx != q.ctx {
		return errors.New("invalid buffer for this queue")
	}
	if m.released.Load() {
		return errReleased
	}
	if len(dst) > len(m.data) {
		return fmt.Errorf("read of %d bytes exceeds buffer size %d", len(dst), len(m.data))
	}
	copy(dst, m.data)
	return nil
}

// Finish waits for all queued launches and reports their failures.
func (q *queue) Finish() error {
	q.mu.Lock()
	pending := q.inflight
	q.inflight = nil
	q.mu.Unlock()

	var errs []error
	for _, l := range pending {
		<-l.done
		if l.err != nil {
			errs = append(errs, l.err)
		}
	}
	return errors.Join(errs...)
}

func (q *queue) Release() {
	q.Finish()
	q.mu.Lock()
	q.released = true
	q.mu.Unlock()
}

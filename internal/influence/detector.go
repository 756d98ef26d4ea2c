package influence

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"crypto_swarm/internal/domain"
)

// Result is the output of Detect.
type Result struct {
	// Accounts maps dense index -> subaccount id, in first-seen order over the sorted log.
	Accounts []string
	// Blocks lists the distinct blocks in ascending order, one per activity row.
	Blocks []int64
	// Activity is the M×N binary block-activity matrix.
	Activity [][]uint8
	// Matrix is Activityᵀ·Activity.
	Matrix *Matrix
}

// Index returns the dense index of a subaccount.
func (r *Result) Index(account string) (int, bool) {
	for i, a := range r.Accounts {
		if a == account {
			return i, true
		}
	}
	return 0, false
}

// Detect builds the co-activity matrix from an order log.
// Every event is validated before anything is sorted; the input slice is not modified.
func Detect(events []domain.OrderEvent) (*Result, error) {
	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			if ve, ok := err.(*domain.ValidationError); ok {
				ve.Row = i + 1
			}
			return nil, err
		}
	}

	keyed := make([]keyedEvent, len(events))
	for i, ev := range events {
		keyed[i] = keyedEvent{ev: ev}
		keyed[i].num, keyed[i].numeric = accountNumber(ev.SubaccountID)
	}
	sort.SliceStable(keyed, func(i, j int) bool {
		return keyed[i].less(keyed[j])
	})
	sorted := make([]domain.OrderEvent, len(keyed))
	for i := range keyed {
		sorted[i] = keyed[i].ev
	}

	// First-seen indexing over the whole log, so the index range is exactly 0..N-1.
	index := make(map[string]int)
	var accounts []string
	for _, ev := range sorted {
		if _, ok := index[ev.SubaccountID]; !ok {
			index[ev.SubaccountID] = len(accounts)
			accounts = append(accounts, ev.SubaccountID)
		}
	}
	n := len(accounts)

	res := &Result{Accounts: accounts}
	if len(sorted) == 0 {
		res.Matrix = NewMatrix(0)
		return res, nil
	}

	current := make([]uint8, n)
	block := sorted[0].Block
	for _, ev := range sorted {
		if ev.Block != block {
			res.Activity = append(res.Activity, current)
			res.Blocks = append(res.Blocks, block)
			current = make([]uint8, n)
			block = ev.Block
		}
		idx := index[ev.SubaccountID]
		if idx < 0 || idx >= n {
			return nil, &domain.InvariantError{
				Op:     "influence.detect",
				Detail: fmt.Sprintf("account %q index %d out of range [0,%d)", ev.SubaccountID, idx, n),
			}
		}
		current[idx] = 1
	}
	res.Activity = append(res.Activity, current)
	res.Blocks = append(res.Blocks, block)

	m, err := coActivity(res.Activity, n)
	if err != nil {
		return nil, err
	}
	res.Matrix = m

	slog.Debug("Influence matrix built",
		slog.Int("events", len(events)),
		slog.Int("accounts", n),
		slog.Int("blocks", len(res.Blocks)))

	return res, nil
}

// keyedEvent caches the parsed account id used as the secondary sort key.
type keyedEvent struct {
	ev      domain.OrderEvent
	num     int64
	numeric bool
}

// less orders by block, then account. Integer ids compare numerically and
// sort before non-integer ids, which compare as strings.
func (a keyedEvent) less(b keyedEvent) bool {
	if a.ev.Block != b.ev.Block {
		return a.ev.Block < b.ev.Block
	}
	switch {
	case a.numeric && b.numeric:
		if a.num != b.num {
			return a.num < b.num
		}
	case a.numeric != b.numeric:
		return a.numeric
	}
	return a.ev.SubaccountID < b.ev.SubaccountID
}

func accountNumber(id string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	return n, err == nil
}

// coActivity computes Aᵀ·A for a binary M×N matrix by pairing the active columns of each row.
func coActivity(activity [][]uint8, n int) (*Matrix, error) {
	m := NewMatrix(n)
	active := make([]int, 0, n)
	for r, row := range activity {
		if len(row) != n {
			return nil, &domain.InvariantError{
				Op:     "influence.coactivity",
				Detail: fmt.Sprintf("row %d has width %d, want %d", r, len(row), n),
			}
		}
		active = active[:0]
		for j, v := range row {
			if v != 0 {
				active = append(active, j)
			}
		}
		for _, i := range active {
			for _, j := range active {
				m.add(i, j, 1)
			}
		}
	}
	return m, nil
}

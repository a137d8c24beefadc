// Package reconciliation pairs bank statement credits with orders awaiting payment.
package reconciliation

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/schollz/closestmatch"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/orders"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/modules/statement"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/textnorm"
)

type Status string

const (
	StatusMatched        Status = "matched"
	StatusNotFound       Status = "not_found"
	StatusAmountMismatch Status = "amount_mismatch"
)

// Score components. Exact amount alone outweighs any near-amount combination.
const (
	pointsExactAmount = 60
	pointsNearAmount  = 25
	pointsReference   = 15
	pointsPayerName   = 10
	maxScore          = 100
)

// Policy holds the matching thresholds.
type Policy struct {
	MatchThreshold       int
	AutoConfirmThreshold int
	NearAmountPercent    int64
	DaysBefore           int
	DaysAfter            int
	Location             *time.Location
}

func DefaultPolicy() Policy {
	return Policy{
		MatchThreshold:       60,
		AutoConfirmThreshold: 80,
		NearAmountPercent:    5,
		DaysBefore:           1,
		DaysAfter:            7,
		Location:             time.Local,
	}
}

// Band is the UI colour band of a confidence score.
func Band(confidence int) string {
	switch {
	case confidence >= 80:
		return "high"
	case confidence >= 60:
		return "medium"
	default:
		return "low"
	}
}

type Result struct {
	OrderID     string                 `json:"order_id"`
	OrderNSU    string                 `json:"order_nsu"`
	OrderAmount int64                  `json:"order_amount_cents"`
	Transaction *statement.Transaction `json:"matched_transaction"`
	Status      Status                 `json:"status"`
	Confidence  int                    `json:"confidence"`
	Band        string                 `json:"band"`
	Confirmed   bool                   `json:"confirmed"`

	autoConfirm bool
	txIndex     int
}

type candidate struct {
	order int
	tx    int
	score int
	exact bool
	days  int
}

// Matcher scores transaction/order pairs and assigns each credit to at most one order.
type Matcher struct {
	policy Policy
}

func NewMatcher(p Policy) *Matcher {
	if p.Location == nil {
		p.Location = time.Local
	}
	return &Matcher{policy: p}
}

// Match returns one result per order, in input order. Assignment is greedy by score; ties
// go to the closer date, then the older order, then the earlier statement line.
func (m *Matcher) Match(pending []orders.Order, txs []statement.Transaction) []Result {
	names := newNameIndex(pending)

	var cands []candidate
	for oi, o := range pending {
		for ti, tx := range txs {
			score, exact, days, ok := m.score(o, tx, names)
			if !ok {
				continue
			}
			cands = append(cands, candidate{order: oi, tx: ti, score: score, exact: exact, days: days})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if abs(a.days) != abs(b.days) {
			return abs(a.days) < abs(b.days)
		}
		oa, ob := pending[a.order].CreatedAt, pending[b.order].CreatedAt
		if !oa.Equal(ob) {
			return oa.Before(ob)
		}
		return a.tx < b.tx
	})

	results := make([]Result, len(pending))
	for i, o := range pending {
		results[i] = Result{
			OrderID:     o.ID,
			OrderNSU:    o.NSU,
			OrderAmount: o.TotalCents,
			Status:      StatusNotFound,
			Band:        Band(0),
			txIndex:     -1,
		}
	}

	usedTx := make(map[int]bool)
	for _, c := range cands {
		r := &results[c.order]
		if r.txIndex >= 0 || usedTx[c.tx] {
			continue
		}
		usedTx[c.tx] = true

		tx := txs[c.tx]
		r.txIndex = c.tx
		r.Transaction = &tx
		r.Confidence = c.score
		r.Band = Band(c.score)
		if c.exact && c.score >= m.policy.MatchThreshold {
			r.Status = StatusMatched
			r.autoConfirm = c.score >= m.policy.AutoConfirmThreshold
		} else {
			r.Status = StatusAmountMismatch
		}
	}
	return results
}

// Score exposes the pair score for a single order and transaction.
func (m *Matcher) Score(o orders.Order, tx statement.Transaction) (int, bool) {
	score, _, _, ok := m.score(o, tx, newNameIndex([]orders.Order{o}))
	return score, ok
}

func (m *Matcher) score(o orders.Order, tx statement.Transaction, names *nameIndex) (score int, exact bool, days int, ok bool) {
	if tx.Type != statement.Credit {
		return 0, false, 0, false
	}
	txDay, err := time.ParseInLocation("2006-01-02", tx.Date, m.policy.Location)
	if err != nil {
		return 0, false, 0, false
	}
	days = dayDiff(dayOf(o.CreatedAt, m.policy.Location), txDay)
	if days < -m.policy.DaysBefore || days > m.policy.DaysAfter {
		return 0, false, days, false
	}

	cents := tx.Cents()
	hasReference := mentionsOrder(o, tx)
	switch {
	case cents == o.TotalCents:
		exact = true
		score += pointsExactAmount
	case m.nearAmount(cents, o.TotalCents):
		score += pointsNearAmount
	case !hasReference:
		return 0, false, days, false
	}

	switch {
	case days <= 0:
		score += 25
	case days == 1:
		score += 20
	case days <= 3:
		score += 15
	default:
		score += 5
	}

	if hasReference {
		score += pointsReference
	} else if names.matches(o, tx) {
		score += pointsPayerName
	}
	if score > maxScore {
		score = maxScore
	}
	return score, exact, days, true
}

func (m *Matcher) nearAmount(cents, total int64) bool {
	if total <= 0 {
		return false
	}
	diff := cents - total
	if diff < 0 {
		diff = -diff
	}
	return diff*100 <= total*m.policy.NearAmountPercent
}

func mentionsOrder(o orders.Order, tx statement.Transaction) bool {
	if o.NSU == "" {
		return false
	}
	nsu := strings.ToUpper(o.NSU)
	return strings.Contains(strings.ToUpper(tx.Description), nsu) ||
		strings.Contains(strings.ToUpper(tx.Reference), nsu)
}

// nameIndex fuzzy-matches statement descriptions against customer names.
type nameIndex struct {
	cm *closestmatch.ClosestMatch
}

func newNameIndex(pending []orders.Order) *nameIndex {
	seen := make(map[string]bool)
	var keys []string
	for _, o := range pending {
		k := textnorm.Key(o.CustomerName)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return &nameIndex{}
	}
	return &nameIndex{cm: closestmatch.New(keys, []int{3, 4})}
}

// matches slides a window as wide as the customer's name over the description words. A window
// matches when it is the name itself, or when its closest known name is this customer's and the
// two share a word.
func (n *nameIndex) matches(o orders.Order, tx statement.Transaction) bool {
	if n.cm == nil {
		return false
	}
	nameWords := textnorm.Tokens(o.CustomerName, 3)
	descWords := textnorm.Tokens(tx.Description, 3)
	if len(nameWords) == 0 || len(descWords) == 0 {
		return false
	}
	name := strings.Join(nameWords, " ")
	key := textnorm.Key(o.CustomerName)

	width := len(nameWords)
	if width > len(descWords) {
		width = len(descWords)
	}
	for i := 0; i+width <= len(descWords); i++ {
		window := descWords[i : i+width]
		joined := strings.Join(window, " ")
		if joined == name {
			return true
		}
		if n.cm.Closest(joined) == key && sharesWord(window, nameWords) {
			return true
		}
	}
	return false
}

func sharesWord(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, w := range a {
		set[w] = true
	}
	for _, w := range b {
		if set[w] {
			return true
		}
	}
	return false
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func dayDiff(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

package economy

// Rules are the ledger constants.
type Rules struct {
	StartMoney  int `mapstructure:"start_money" json:"start_money"`
	StartHealth int `mapstructure:"start_health" json:"start_health"`
	KillScore   int `mapstructure:"kill_score" json:"kill_score"`
	KillMoney   int `mapstructure:"kill_money" json:"kill_money"`
	LeakPenalty int `mapstructure:"leak_penalty" json:"leak_penalty"`
}

// DefaultRules returns the classic values: 100 money, 100 health, +10/+10 per
// kill and -20 health per leak.
func DefaultRules() Rules {
	return Rules{StartMoney: 100, StartHealth: 100, KillScore: 10, KillMoney: 10, LeakPenalty: 20}
}

// State is a copy of the ledger balances.
type State struct {
	Money  int `json:"money"`
	Score  int `json:"score"`
	Health int `json:"health"`
}

// Ledger tracks money, score and health. Money never goes negative.
type Ledger struct {
	rules Rules
	state State
	over  bool
}

func NewLedger(rules Rules) *Ledger {
	l := &Ledger{rules: rules}
	l.Reset()
	return l
}

// Reset restores the starting balances.
func (l *Ledger) Reset() {
	l.state = State{Money: l.rules.StartMoney, Health: l.rules.StartHealth}
	l.over = l.state.Health <= 0
}

func (l *Ledger) State() State         { return l.state }
func (l *Ledger) Rules() Rules         { return l.rules }
func (l *Ledger) IsOver() bool         { return l.over }
func (l *Ledger) CanAfford(n int) bool { return n >= 0 && l.state.Money >= n }

// Spend deducts n if the balance covers it. Negative amounts are refused.
func (l *Ledger) Spend(n int) bool {
	if !l.CanAfford(n) {
		return false
	}
	l.state.Money -= n
	return true
}

// Earn credits n. Negative amounts are ignored.
func (l *Ledger) Earn(n int) {
	if n > 0 {
		l.state.Money += n
	}
}

// OnKill credits the kill reward.
func (l *Ledger) OnKill() {
	l.state.Score += l.rules.KillScore
	l.state.Money += l.rules.KillMoney
}

// OnLeak applies the leak penalty and reports true exactly once, on the leak
// that drops health to zero or below.
func (l *Ledger) OnLeak() bool {
	l.state.Health -= l.rules.LeakPenalty
	if l.state.Health <= 0 && !l.over {
		l.over = true
		return true
	}
	return false
}

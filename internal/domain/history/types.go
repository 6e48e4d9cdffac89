package history

// Origin distingue quién generó el registro.
type Origin string

const (
	OriginConfirmed    Origin = "confirmed"
	OriginMissed       Origin = "missed_by_scheduler"
	OriginAutoAdvanced Origin = "auto_advanced"
)

func (o Origin) Valid() bool {
	switch o {
	case OriginConfirmed, OriginMissed, OriginAutoAdvanced:
		return true
	default:
		return false
	}
}

// StatusFilter filtra lecturas por tomada/perdida.
type StatusFilter string

const (
	StatusAll    StatusFilter = "all"
	StatusTaken  StatusFilter = "taken"
	StatusMissed StatusFilter = "missed"
)

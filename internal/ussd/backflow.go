package ussd

// Resolution is the result of applying reserved navigation entries to the
// post-authentication entry sequence.
type Resolution struct {
	// Entries is the effective sequence, service selector first. Empty means
	// the user is at the root menu.
	Entries []string
	// Exit is set when the final entry was "0" at the root menu.
	Exit bool
	// WentHome is set when any entry collapsed the dialog to the root menu;
	// the engine clears the resume snapshot in that case.
	WentHome bool
}

// rootJumpServices are the services where "0" at the second step returns to
// the root menu instead of one level up. This is a deliberate shortcut that
// lets users hop between services without an intermediate screen; feedback
// and help are excluded on purpose.
var rootJumpServices = map[string]bool{
	SelectorCycle:         true,
	SelectorMeals:         true,
	SelectorAppointments:  true,
	SelectorEducation:     true,
	SelectorNotifications: true,
	SelectorParental:      true,
	SelectorSettings:      true,
}

// Resolve folds the reserved entries "0" and "00" out of the sequence,
// left to right. "00" always collapses to the root menu. "0" exits at the
// root, jumps to the root from the first step of any service and from the
// second step of the rootJumpServices, and otherwise drops the previous
// entry — back is "pretend that entry was never sent". After a collapse to
// the root, the next digit is dispatched as a fresh service selection, which
// is how a user who backed out mid-flow jumps straight to another service.
func Resolve(entries []string) Resolution {
	var res Resolution
	eff := make([]string, 0, len(entries))
	for _, e := range entries {
		res.Exit = false
		switch {
		case e == EntryHome:
			eff = eff[:0]
			res.WentHome = true
		case e == EntryBack:
			switch len(eff) {
			case 0:
				res.Exit = true
			case 1:
				eff = eff[:0]
				res.WentHome = true
			case 2:
				if rootJumpServices[eff[0]] {
					eff = eff[:0]
					res.WentHome = true
				} else {
					eff = eff[:1]
				}
			default:
				eff = eff[:len(eff)-1]
			}
		default:
			eff = append(eff, e)
		}
	}
	res.Entries = eff
	return res
}

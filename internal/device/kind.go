package device

// Kind is the logical category of a sensor.
type Kind int

const (
	// KindOther covers codes with no built-in transition, such as level probes.
	KindOther Kind = iota
	// KindPIRTrigger is a passive infrared motion sensor.
	KindPIRTrigger
	// KindSwitch is a wall switch; every edge toggles its outputs.
	KindSwitch
)

// ParseKind maps a configured kind code to a Kind.
func ParseKind(code string) Kind {
	switch code {
	case "PIR_Trigger":
		return KindPIRTrigger
	case "Switch":
		return KindSwitch
	default:
		return KindOther
	}
}

func (k Kind) String() string {
	switch k {
	case KindPIRTrigger:
		return "PIR_Trigger"
	case KindSwitch:
		return "Switch"
	default:
		return "Other"
	}
}

// HasTag reports whether tags contains tag.
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

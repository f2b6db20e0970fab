package main

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// contactState is the last known level of each encoder contact.
// gpio-keys reports a closed contact as a key press, so a pressed key is a low level.
type contactState struct {
	a, b     bool // true = high (open)
	switchOn bool // true = switch closed
}

func idleContacts() contactState {
	return contactState{a: true, b: true}
}

// keyMap maps gpio-keys key codes onto encoder contacts.
type keyMap struct {
	a, b, sw uint16 // sw == 0 disables the switch contact
}

// apply folds one input event into st. It reports which contacts it touched.
func (m keyMap) apply(ev inputEvent, st *contactState) (pins, sw bool) {
	if ev.Type != EV_KEY || ev.Value == evValueRepeat {
		return false, false
	}
	closed := ev.Value == evValuePress

	switch {
	case ev.Code == m.a:
		st.a = !closed
		return true, false
	case ev.Code == m.b:
		st.b = !closed
		return true, false
	case m.sw != 0 && ev.Code == m.sw:
		st.switchOn = closed
		return false, true
	}
	return false, false
}

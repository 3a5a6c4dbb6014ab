package goSession

// User is the opaque identity/profile record held by the session. Field
// names and values are owned by the surrounding application.
type User map[string]any

// Clone returns a shallow copy of u. A nil User stays nil.
func (u User) Clone() User {
	if u == nil {
		return nil
	}
	out := make(User, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}

// Merge returns a new record holding the fields of u overlaid with the fields
// of partial. Neither input is modified.
func (u User) Merge(partial User) User {
	out := make(User, len(u)+len(partial))
	for k, v := range u {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

// Field identifies one observable field of the session. Fields combine as a
// bitmask for subscriptions and change notifications.
type Field uint8

const (
	// FieldUser is the user record.
	FieldUser Field = 1 << iota
	// FieldToken is the auth token.
	FieldToken
	// FieldAuthenticated is the derived authentication flag.
	FieldAuthenticated

	// FieldAll matches every session field.
	FieldAll = FieldUser | FieldToken | FieldAuthenticated
)

// Has reports whether every bit of other is set in f.
func (f Field) Has(other Field) bool {
	return f&other == other
}

func (f Field) String() string {
	if f == 0 {
		return "none"
	}
	out := ""
	add := func(name string) {
		if out != "" {
			out += "|"
		}
		out += name
	}
	if f&FieldUser != 0 {
		add("user")
	}
	if f&FieldToken != 0 {
		add("token")
	}
	if f&FieldAuthenticated != 0 {
		add("authenticated")
	}
	return out
}

// Snapshot is a consistent copy of the session taken under a single lock.
type Snapshot struct {
	User            User
	Token           string
	HasToken        bool
	IsAuthenticated bool
}

// Change is delivered to subscribers after a mutation. Fields names the
// fields the mutation changed; Snapshot is the full session as of that
// mutation, so no subscriber can observe a partially applied update.
type Change struct {
	Seq      uint64
	Fields   Field
	Snapshot Snapshot
}

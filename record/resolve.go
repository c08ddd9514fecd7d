package record

// Resolver maps a caller-local id to the global id the backend issued. Ids it
// does not know are returned unchanged.
type Resolver interface {
	Resolve(id string) string
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(id string) string

// Resolve calls f(id).
func (f ResolverFunc) Resolve(id string) string {
	return f(id)
}

// ResolveText rewrites every embedded marker in text so that it carries the
// resolved id instead of the caller-local one.
func ResolveText(text string, res Resolver) string {
	return markerPattern.ReplaceAllStringFunc(text, func(m string) string {
		sub := markerPattern.FindStringSubmatch(m)
		return Marker(res.Resolve(sub[1]))
	})
}

// ResolveValue returns v with every reference it carries resolved.
func ResolveValue(v PropertyValue, res Resolver) PropertyValue {
	switch p := v.Payload.(type) {
	case Reference:
		v.Payload = Reference{Target: res.Resolve(p.Target)}
	case FormattedText:
		v.Payload = FormattedText{Text: ResolveText(p.Text, res)}
	}
	return v
}

// ResolveReferences returns a copy of r with every direct and embedded
// reference resolved. This is the form in which a record is sent to the backend.
func ResolveReferences(r Record, res Resolver) Record {
	out := r.Clone()
	for i := range out.Values {
		out.Values[i] = ResolveValue(out.Values[i], res)
	}
	return out
}

package live

import (
	"encoding/json"
	"fmt"
)

// Kind is the kind of a mutation event.
type Kind int

const (
	KindUnknown Kind = iota
	KindAddPost
	KindUpdatePost
	KindAddComment
)

var kindTags = map[Kind]struct{ internal, public string }{
	KindAddPost:    {"server/addPost", "ADD_POST"},
	KindUpdatePost: {"server/updatePost", "UPDATE_POST"},
	KindAddComment: {"server/addComment", "ADD_COMMENT"},
}

// KindFromTag maps an internal tag such as "server/addPost" to its Kind.
func KindFromTag(tag string) Kind {
	for k, tags := range kindTags {
		if tags.internal == tag {
			return k
		}
	}
	return KindUnknown
}

// Tag returns the internal tag clients send.
func (k Kind) Tag() string {
	return kindTags[k].internal
}

// PublicTag returns the tag relayed to other clients. It is empty for
// KindUnknown.
func (k Kind) PublicTag() string {
	return kindTags[k].public
}

func (k Kind) String() string {
	if k == KindUnknown {
		return "unknown"
	}
	return k.PublicTag()
}

// MutationEvent is one client-submitted change to the shared post list.
type MutationEvent struct {
	Kind Kind

	// Tag is the "type" the client sent, kept for logging unknown kinds.
	Tag string

	// Payload holds every top-level field except "type".
	Payload map[string]json.RawMessage
}

// ParseEvent decodes a client frame of the form {"type": "...", ...}.
// An unrecognized type is not an error; it yields KindUnknown.
func ParseEvent(raw []byte) (MutationEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return MutationEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if fields == nil {
		return MutationEvent{}, fmt.Errorf("%w: not an object", ErrMalformedEvent)
	}

	var tag string
	if err := json.Unmarshal(fields["type"], &tag); err != nil {
		return MutationEvent{}, fmt.Errorf("%w: missing string type", ErrMalformedEvent)
	}
	delete(fields, "type")

	return MutationEvent{Kind: KindFromTag(tag), Tag: tag, Payload: fields}, nil
}

// Encode returns the event as relayed to other clients: the payload with
// "type" set to the public tag.
func (e MutationEvent) Encode() ([]byte, error) {
	if e.Kind == KindUnknown {
		return nil, fmt.Errorf("live: cannot encode unknown event kind %q", e.Tag)
	}
	out := make(map[string]json.RawMessage, len(e.Payload)+1)
	for k, v := range e.Payload {
		out[k] = v
	}
	tag, _ := json.Marshal(e.Kind.PublicTag())
	out["type"] = tag
	return json.Marshal(out)
}

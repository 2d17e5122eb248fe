package streams

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// FeedRequest is a parsed feed query. At most one of StreamId and Inline is
// set; when neither is, the feed shows all activity.
type FeedRequest struct {
	StreamId int64
	Inline   *StreamDefinition
	Keywords string
	SortBy   string
	Page     PageRequest
}

// ParseFeedRequest validates and decodes a JSON feed query of the form
//
//	{"query": {"streamId": 3} | {"stream": {"kind": "custom", "scopes": [{"type": "group", "id": 7}]}},
//	 "keywords": "launch", "sortBy": "date", "count": 10, "maxId": 1200, "minId": 0}
//
// Every error wraps ErrMalformedRequest.
func ParseFeedRequest(body []byte) (FeedRequest, error) {
	if !gjson.ValidBytes(body) {
		return FeedRequest{}, fmt.Errorf("%w: invalid json", ErrMalformedRequest)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return FeedRequest{}, fmt.Errorf("%w: request is not an object", ErrMalformedRequest)
	}

	req := FeedRequest{
		SortBy: SortByDate,
		Page:   PageRequest{Size: DefaultPageSize, Sort: SortById},
	}

	query := root.Get("query")
	if query.Exists() {
		if !query.IsObject() {
			return FeedRequest{}, fmt.Errorf("%w: query is not an object", ErrMalformedRequest)
		}
		if id := query.Get("streamId"); id.Exists() {
			if id.Type != gjson.Number || id.Int() <= 0 {
				return FeedRequest{}, fmt.Errorf("%w: invalid streamId", ErrMalformedRequest)
			}
			req.StreamId = id.Int()
		}
		if stream := query.Get("stream"); stream.Exists() {
			if req.StreamId != 0 {
				return FeedRequest{}, fmt.Errorf("%w: both streamId and stream given", ErrMalformedRequest)
			}
			def, err := parseInlineStream(stream)
			if err != nil {
				return FeedRequest{}, err
			}
			req.Inline = &def
		}
	}

	if kw := root.Get("keywords"); kw.Exists() {
		if kw.Type != gjson.String {
			return FeedRequest{}, fmt.Errorf("%w: keywords is not a string", ErrMalformedRequest)
		}
		req.Keywords = strings.TrimSpace(kw.String())
	}

	if sortBy := root.Get("sortBy"); sortBy.Exists() {
		switch sortBy.String() {
		case SortByDate:
		case SortByLikes, SortByComments:
			req.SortBy = sortBy.String()
			req.Page.Sort = SortCustom
		default:
			return FeedRequest{}, fmt.Errorf("%w: unknown sortBy %q", ErrMalformedRequest, sortBy.String())
		}
	}

	counters := []struct {
		name string
		dst  *int64
	}{
		{"minId", &req.Page.MinId},
		{"maxId", &req.Page.MaxId},
	}
	for _, c := range counters {
		v := root.Get(c.name)
		if !v.Exists() {
			continue
		}
		if v.Type != gjson.Number || v.Int() < 0 {
			return FeedRequest{}, fmt.Errorf("%w: invalid %s", ErrMalformedRequest, c.name)
		}
		*c.dst = v.Int()
	}

	if count := root.Get("count"); count.Exists() {
		if count.Type != gjson.Number || count.Int() < 0 {
			return FeedRequest{}, fmt.Errorf("%w: invalid count", ErrMalformedRequest)
		}
		req.Page.Size = int(count.Int())
		if req.Page.Size > MaxPageSize {
			req.Page.Size = MaxPageSize
		}
	}
	return req, nil
}

func parseInlineStream(stream gjson.Result) (StreamDefinition, error) {
	if !stream.IsObject() {
		return StreamDefinition{}, fmt.Errorf("%w: stream is not an object", ErrMalformedRequest)
	}
	kind := StreamKind(stream.Get("kind").String())
	if !kind.Valid() {
		return StreamDefinition{}, fmt.Errorf("%w: unknown stream kind %q", ErrMalformedRequest, kind)
	}
	def := StreamDefinition{Kind: kind}

	scopes := stream.Get("scopes")
	if !scopes.Exists() {
		return def, nil
	}
	if kind != KindCustom || !scopes.IsArray() {
		return StreamDefinition{}, fmt.Errorf("%w: scopes only allowed as array of custom stream", ErrMalformedRequest)
	}
	for _, s := range scopes.Array() {
		scope, err := parseScope(s)
		if err != nil {
			return StreamDefinition{}, err
		}
		def.Scopes = append(def.Scopes, scope)
	}
	return def, nil
}

func parseScope(s gjson.Result) (Scope, error) {
	scopeType := ScopeType(s.Get("type").String())
	switch scopeType {
	case ScopePerson, ScopeGroup, ScopeOrg:
	default:
		return Scope{}, fmt.Errorf("%w: unknown scope type %q", ErrMalformedRequest, scopeType)
	}
	id := s.Get("id")
	if id.Type != gjson.Number || id.Int() <= 0 {
		return Scope{}, fmt.Errorf("%w: invalid scope id", ErrMalformedRequest)
	}
	return Scope{Type: scopeType, Id: id.Int()}, nil
}

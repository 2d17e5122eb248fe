package rest

import "github.com/buzkaaclicker/streams"

type entityResponse struct {
	Id        int64  `json:"id"`
	Name      string `json:"name"`
	AvatarUrl string `json:"avatarUrl,omitempty"`
}

type destinationResponse struct {
	Type     string `json:"type"`
	Id       int64  `json:"id"`
	StreamId int64  `json:"streamId"`
	Name     string `json:"name"`
}

type commentResponse struct {
	Id         int64  `json:"id"`
	ActivityId int64  `json:"activityId"`
	Author     int64  `json:"author"`
	Body       string `json:"body"`
	CreatedAt  int64  `json:"createdAt"`
}

type activityResponse struct {
	Id           int64                  `json:"id"`
	CreatedAt    int64                  `json:"createdAt"`
	Author       entityResponse         `json:"author"`
	Destination  destinationResponse    `json:"destination"`
	Verb         string                 `json:"verb"`
	Properties   map[string]interface{} `json:"properties"`
	FirstComment *commentResponse       `json:"firstComment"`
	LastComment  *commentResponse       `json:"lastComment"`
	CommentCount int                    `json:"commentCount"`
	LikeCount    int                    `json:"likeCount"`
	Starred      bool                   `json:"starred"`
	Liked        bool                   `json:"liked"`
	Deletable    bool                   `json:"deletable"`
}

func mapActivity(a streams.Activity) activityResponse {
	properties := a.Properties
	if properties == nil {
		properties = map[string]interface{}{}
	}
	return activityResponse{
		Id:        a.Id,
		CreatedAt: a.CreatedAt.Unix(),
		Author: entityResponse{
			Id:        int64(a.Author),
			Name:      a.AuthorName,
			AvatarUrl: a.AuthorAvatar,
		},
		Destination: destinationResponse{
			Type:     string(a.Destination.Type),
			Id:       a.Destination.EntityId,
			StreamId: a.Destination.StreamId,
			Name:     a.DestinationName,
		},
		Verb:         a.Verb,
		Properties:   properties,
		FirstComment: mapOptionalComment(a.FirstComment),
		LastComment:  mapOptionalComment(a.LastComment),
		CommentCount: a.CommentCount,
		LikeCount:    a.LikeCount,
		Starred:      a.Starred,
		Liked:        a.Liked,
		Deletable:    a.Deletable,
	}
}

func mapComment(c streams.Comment) commentResponse {
	return commentResponse{
		Id:         c.Id,
		ActivityId: c.ActivityId,
		Author:     int64(c.Author),
		Body:       c.Body,
		CreatedAt:  c.CreatedAt.Unix(),
	}
}

func mapOptionalComment(c *streams.Comment) *commentResponse {
	if c == nil {
		return nil
	}
	mapped := mapComment(*c)
	return &mapped
}

func mapStream(def streams.StreamDefinition) streamBody {
	scopes := def.Scopes
	if scopes == nil {
		scopes = []streams.Scope{}
	}
	return streamBody{
		Id:       def.Id,
		Name:     def.Name,
		Kind:     string(def.Kind),
		Scopes:   scopes,
		Keywords: def.Keywords,
	}
}

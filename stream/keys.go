package stream

import (
	"strconv"

	"github.com/buzkaaclicker/streams"
)

// Id lists of every stream kind live under the "ids:" prefix, hydrated
// records use "<kind>:<id>", so the two never collide.

func AllKey() string {
	return "ids:all"
}

func CustomKey(definitionId int64) string {
	return "ids:custom:" + strconv.FormatInt(definitionId, 10)
}

func FollowingKey(viewer streams.UserId) string {
	return "ids:following:" + strconv.FormatInt(int64(viewer), 10)
}

func ParentOrgKey(org streams.OrgId) string {
	return "ids:parentorg:" + strconv.FormatInt(int64(org), 10)
}

func StreamKey(streamId int64) string {
	return "ids:stream:" + strconv.FormatInt(streamId, 10)
}

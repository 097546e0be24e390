package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/retracehq/retrace/internal/attribution"
	"github.com/retracehq/retrace/internal/models"
)

// Attribution headers. The actor is a union: either the structured pair or
// the display name, never both. Group tag and comment always travel together.
const (
	HeaderActorType    = "X-Audit-Actor-Type"
	HeaderActorID      = "X-Audit-Actor-Id"
	HeaderActorName    = "X-Audit-Actor"
	HeaderGroupTag     = "X-Audit-Group-Tag"
	HeaderGroupComment = "X-Audit-Group-Comment"
)

// Attribution binds the request's audit attribution headers onto the request
// context, where the audit engine resolves them at record-creation time.
// Requests without attribution headers pass through unattributed.
func Attribution() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		actorType := c.GetHeader(HeaderActorType)
		actorID := c.GetHeader(HeaderActorID)
		actorName := c.GetHeader(HeaderActorName)

		if (actorType != "") != (actorID != "") {
			respondError(c, http.StatusBadRequest, "invalid_actor",
				HeaderActorType+" and "+HeaderActorID+" must be provided together")

			return
		}

		if actorType != "" && actorName != "" {
			respondError(c, http.StatusBadRequest, "invalid_actor",
				"provide either a structured actor or "+HeaderActorName+", not both")

			return
		}

		switch {
		case actorType != "":
			ctx = attribution.WithActor(ctx, models.NewActorRef(actorType, actorID))
		case actorName != "":
			ctx = attribution.WithActor(ctx, models.NewActorName(actorName))
		}

		tag := c.GetHeader(HeaderGroupTag)
		comment := c.GetHeader(HeaderGroupComment)

		if (tag != "") != (comment != "") {
			respondError(c, http.StatusBadRequest, "invalid_group", models.ErrPartialGroup.Error())

			return
		}

		if tag != "" {
			ctx = attribution.WithGroup(ctx, tag, comment)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

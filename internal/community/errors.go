package community

import "github.com/findius/findius/internal/apierr"

var (
	errPageNotFound    = apierr.NotFound("Diese Vergleichsseite gibt es nicht.")
	errCommentNotFound = apierr.NotFound("Dieser Kommentar existiert nicht mehr.")
	errProfileNotFound = apierr.NotFound("Dieses Profil gibt es nicht.")
)

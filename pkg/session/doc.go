// Package session holds the Okapi session established by a login.
//
// The token returned in x-okapi-token is treated as opaque: it is only ever
// echoed back to Okapi. When it happens to be a JWT, its claims are decoded
// without signature verification so that logs and audit records can name the
// authenticated user and tenant.
//
// # Basic Usage
//
//	sess := session.New(tenant, username, token)
//	if claims, ok := sess.Claims(); ok {
//		fmt.Println(claims.UserID)
//	}
//	ctx = session.Set(ctx, sess)
package session

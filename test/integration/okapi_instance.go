package integration

import (
	"bytes"
	"fmt"

	"github.com/doodlesbykumbi/okapictl/pkg/okapi/okapitest"
)

// OkapiInstance is a stub Okapi gateway started for a single scenario
type OkapiInstance struct {
	*okapitest.Server
	AccessLog *bytes.Buffer

	// users maps usernames to the ids they were registered with
	users map[string]string
}

// StartOkapi starts a stub gateway that accepts tenant and hands out token
func StartOkapi(tenant, token string) *OkapiInstance {
	accessLog := &bytes.Buffer{}
	return &OkapiInstance{
		Server:    okapitest.NewServer(tenant, token, okapitest.WithRequestLog(accessLog)),
		AccessLog: accessLog,
		users:     map[string]string{},
	}
}

// AddUser registers username with id and password
func (o *OkapiInstance) AddUser(username, id, password string) {
	o.users[username] = id
	o.Server.AddUser(username, id, password)
}

// UserID returns the id username was registered with
func (o *OkapiInstance) UserID(username string) (string, error) {
	id, ok := o.users[username]
	if !ok {
		return "", fmt.Errorf("user %q was not registered", username)
	}
	return id, nil
}

// Stop shuts the gateway down
func (o *OkapiInstance) Stop() {
	if o != nil && o.Server != nil {
		o.Server.Close()
	}
}

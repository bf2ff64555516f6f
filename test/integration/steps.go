package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/doodlesbykumbi/okapictl/pkg/audit"
	"github.com/doodlesbykumbi/okapictl/pkg/okapi"
	"github.com/doodlesbykumbi/okapictl/pkg/provision"
)

const (
	sessionToken      = "eyJhbGciOiJIUzI1NiJ9.integration.token"
	defaultRunTimeout = 10 * time.Second
)

// StepsContext holds state shared between step definitions
type StepsContext struct {
	okapi  *OkapiInstance
	client *okapi.Client
	opts   provision.Options
	output bytes.Buffer
	audit  bytes.Buffer
	report *provision.Report
	runErr error

	token  string
	userID string
	opErr  error
}

// NewStepsContext creates a new steps context
func NewStepsContext() *StepsContext {
	return &StepsContext{}
}

// RegisterSteps registers all step definitions
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.After(func(ctx context.Context, scenario *godog.Scenario, err error) (context.Context, error) {
		s.okapi.Stop()
		return ctx, nil
	})

	// Gateway steps
	sc.Step(`^an Okapi gateway for tenant "([^"]*)"$`, s.anOkapiGatewayForTenant)
	sc.Step(`^a user "([^"]*)" with id "([^"]*)" and password "([^"]*)"$`, s.aUserWithIDAndPassword)
	sc.Step(`^a user "([^"]*)" with id "([^"]*)"$`, s.aUserWithID)
	sc.Step(`^user "([^"]*)" holds (\d+) permissions$`, s.userHoldsPermissions)
	sc.Step(`^user "([^"]*)" holds "([^"]*)"$`, s.userHoldsPermission)
	sc.Step(`^granting "([^"]*)" fails with status (\d+) and body "([^"]*)"$`, s.grantingFailsWith)
	sc.Step(`^duplicate grants are rejected with status (\d+)$`, s.duplicateGrantsAreRejectedWith)
	sc.Step(`^login responses omit the token header$`, s.loginResponsesOmitTheTokenHeader)

	// Client steps
	sc.Step(`^I authenticate as "([^"]*)" with password "([^"]*)"$`, s.iAuthenticateAs)
	sc.Step(`^I resolve the user "([^"]*)"$`, s.iResolveTheUser)
	sc.Step(`^the token should be exactly the token the gateway issued$`, s.theTokenShouldBeExact)
	sc.Step(`^the resolved user id should be "([^"]*)"$`, s.theResolvedUserIDShouldBe)
	sc.Step(`^the operation should fail with "([^"]*)"$`, s.theOperationShouldFailWith)

	// Provisioning steps
	sc.Step(`^I log in as "([^"]*)" with password "([^"]*)"$`, s.iLogInAs)
	sc.Step(`^the permissions to grant are "([^"]*)"$`, s.thePermissionsToGrantAre)
	sc.Step(`^the target user is "([^"]*)"$`, s.theTargetUserIs)
	sc.Step(`^existing permissions are checked$`, s.existingPermissionsAreChecked)
	sc.Step(`^dry-run mode is enabled$`, s.dryRunModeIsEnabled)
	sc.Step(`^I run the provisioner$`, s.iRunTheProvisioner)
	sc.Step(`^I run the provisioner (\d+) times$`, s.iRunTheProvisionerTimes)

	// Outcome steps
	sc.Step(`^the run should succeed$`, s.theRunShouldSucceed)
	sc.Step(`^the run should fail with "([^"]*)"$`, s.theRunShouldFailWith)
	sc.Step(`^the output should be:$`, s.theOutputShouldBe)
	sc.Step(`^the output should contain "([^"]*)" (\d+) times?$`, s.theOutputShouldContainTimes)
	sc.Step(`^(\d+) grant requests should have been sent$`, s.grantRequestsShouldHaveBeenSent)
	sc.Step(`^no request should have reached "([^"]*)"$`, s.noRequestShouldHaveReached)
	sc.Step(`^every request should carry tenant "([^"]*)"$`, s.everyRequestShouldCarryTenant)
	sc.Step(`^every request after login should carry the session token$`, s.everyRequestAfterLoginShouldCarryToken)
	sc.Step(`^user "([^"]*)" should hold (\d+) permissions$`, s.userShouldHoldPermissions)
	sc.Step(`^the report should count (\d+) before and (\d+) after$`, s.theReportShouldCount)
	sc.Step(`^the outcome for "([^"]*)" should be "([^"]*)"$`, s.theOutcomeShouldBe)
	sc.Step(`^the audit log should contain "([^"]*)"$`, s.theAuditLogShouldContain)
	sc.Step(`^the access log should record "([^"]*)"$`, s.theAccessLogShouldRecord)
}

// Gateway steps

func (s *StepsContext) anOkapiGatewayForTenant(tenant string) error {
	s.okapi = StartOkapi(tenant, sessionToken)
	s.opts = provision.Options{
		OkapiURL:    s.okapi.URL,
		Tenant:      tenant,
		Permissions: []string{},
	}
	return nil
}

func (s *StepsContext) aUserWithIDAndPassword(username, id, password string) error {
	s.okapi.AddUser(username, id, password)
	return nil
}

func (s *StepsContext) aUserWithID(username, id string) error {
	s.okapi.AddUser(username, id, "")
	return nil
}

func (s *StepsContext) userHoldsPermissions(username string, count int) error {
	id, err := s.okapi.UserID(username)
	if err != nil {
		return err
	}
	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf("existing.permission.%d", i+1)
	}
	s.okapi.SetPermissions(id, names...)
	return nil
}

func (s *StepsContext) userHoldsPermission(username, name string) error {
	id, err := s.okapi.UserID(username)
	if err != nil {
		return err
	}
	s.okapi.SetPermissions(id, append(s.okapi.Permissions(id), name)...)
	return nil
}

func (s *StepsContext) grantingFailsWith(name string, code int, body string) error {
	s.okapi.FailGrant(name, code, body)
	return nil
}

func (s *StepsContext) duplicateGrantsAreRejectedWith(code int) error {
	s.okapi.DuplicateStatus = code
	return nil
}

func (s *StepsContext) loginResponsesOmitTheTokenHeader() error {
	s.okapi.OmitToken()
	return nil
}

// Client steps

func (s *StepsContext) newClient() *okapi.Client {
	return okapi.NewClient(s.okapi.URL, s.opts.Tenant)
}

func (s *StepsContext) iAuthenticateAs(username, password string) error {
	s.client = s.newClient()
	s.token, s.opErr = s.client.Login(context.Background(), okapi.Credentials{Username: username, Password: password})
	return nil
}

func (s *StepsContext) iResolveTheUser(username string) error {
	if s.client == nil {
		return fmt.Errorf("not authenticated")
	}
	user, err := s.client.FindUser(context.Background(), username)
	s.opErr = err
	if user != nil {
		s.userID = user.ID
	}
	return nil
}

func (s *StepsContext) theTokenShouldBeExact() error {
	if s.opErr != nil {
		return fmt.Errorf("expected success, got %v", s.opErr)
	}
	if s.token != sessionToken {
		return fmt.Errorf("expected token %q, got %q", sessionToken, s.token)
	}
	return nil
}

func (s *StepsContext) theResolvedUserIDShouldBe(expected string) error {
	if s.opErr != nil {
		return fmt.Errorf("expected success, got %v", s.opErr)
	}
	if s.userID != expected {
		return fmt.Errorf("expected user id %q, got %q", expected, s.userID)
	}
	return nil
}

func (s *StepsContext) theOperationShouldFailWith(fragment string) error {
	if s.opErr == nil {
		return errors.New("expected the operation to fail")
	}
	if !strings.Contains(s.opErr.Error(), fragment) {
		return fmt.Errorf("expected error containing %q, got %q", fragment, s.opErr.Error())
	}
	return nil
}

// Provisioning steps

func (s *StepsContext) iLogInAs(username, password string) error {
	s.opts.Credentials = okapi.Credentials{Username: username, Password: password}
	return nil
}

func (s *StepsContext) thePermissionsToGrantAre(list string) error {
	s.opts.Permissions = nil
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			s.opts.Permissions = append(s.opts.Permissions, name)
		}
	}
	return nil
}

func (s *StepsContext) theTargetUserIs(username string) error {
	s.opts.TargetUser = username
	return nil
}

func (s *StepsContext) existingPermissionsAreChecked() error {
	s.opts.CheckExisting = true
	return nil
}

func (s *StepsContext) dryRunModeIsEnabled() error {
	s.opts.DryRun = true
	return nil
}

func (s *StepsContext) iRunTheProvisioner() error {
	return s.iRunTheProvisionerTimes(1)
}

func (s *StepsContext) iRunTheProvisionerTimes(times int) error {
	recorder := audit.NewRecorder(audit.NewLogger(&s.audit), nil)
	recorder.SetEnabled(true)

	for i := 0; i < times; i++ {
		var out bytes.Buffer
		p := provision.New(s.newClient(), s.opts, &out, provision.WithAuditor(recorder))

		ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
		s.report, s.runErr = p.Run(ctx)
		cancel()

		s.output.Write(out.Bytes())
		if s.runErr != nil {
			return nil
		}
	}
	return nil
}

// Outcome steps

func (s *StepsContext) theRunShouldSucceed() error {
	if s.runErr != nil {
		return fmt.Errorf("expected the run to succeed, got %v", s.runErr)
	}
	return nil
}

func (s *StepsContext) theRunShouldFailWith(fragment string) error {
	if s.runErr == nil {
		return errors.New("expected the run to fail")
	}
	if !strings.Contains(s.runErr.Error(), fragment) {
		return fmt.Errorf("expected error containing %q, got %q", fragment, s.runErr.Error())
	}
	return nil
}

func (s *StepsContext) theOutputShouldBe(expected *godog.DocString) error {
	actual := s.output.String()
	if strings.TrimSpace(actual) != strings.TrimSpace(expected.Content) {
		return fmt.Errorf("expected output:\n%s\ngot:\n%s", expected.Content, actual)
	}
	return nil
}

func (s *StepsContext) theOutputShouldContainTimes(fragment string, times int) error {
	if got := strings.Count(s.output.String(), fragment); got != times {
		return fmt.Errorf("expected %q %d times in output, found %d:\n%s", fragment, times, got, s.output.String())
	}
	return nil
}

func (s *StepsContext) grantRequestsShouldHaveBeenSent(count int) error {
	if got := len(s.okapi.GrantAttempts()); got != count {
		return fmt.Errorf("expected %d grant requests, got %d", count, got)
	}
	return nil
}

func (s *StepsContext) noRequestShouldHaveReached(prefix string) error {
	for _, r := range s.okapi.Requests() {
		if strings.HasPrefix(r.Path, prefix) {
			return fmt.Errorf("unexpected %s %s", r.Method, r.Path)
		}
	}
	return nil
}

func (s *StepsContext) everyRequestShouldCarryTenant(tenant string) error {
	for _, r := range s.okapi.Requests() {
		if r.Tenant != tenant {
			return fmt.Errorf("%s %s carried tenant %q", r.Method, r.Path, r.Tenant)
		}
	}
	return nil
}

func (s *StepsContext) everyRequestAfterLoginShouldCarryToken() error {
	for _, r := range s.okapi.Requests() {
		if r.Path == "/authn/login" {
			continue
		}
		if r.Token != sessionToken {
			return fmt.Errorf("%s %s carried token %q", r.Method, r.Path, r.Token)
		}
	}
	return nil
}

func (s *StepsContext) userShouldHoldPermissions(username string, count int) error {
	id, err := s.okapi.UserID(username)
	if err != nil {
		return err
	}
	if got := len(s.okapi.Permissions(id)); got != count {
		return fmt.Errorf("expected %s to hold %d permissions, got %d", username, count, got)
	}
	return nil
}

func (s *StepsContext) theReportShouldCount(before, after int) error {
	if s.report == nil {
		return errors.New("no report")
	}
	if s.report.Before != before || s.report.After != after {
		return fmt.Errorf("expected %d before and %d after, got %d and %d", before, after, s.report.Before, s.report.After)
	}
	return nil
}

func (s *StepsContext) theOutcomeShouldBe(permission, outcome string) error {
	if s.report == nil {
		return errors.New("no report")
	}
	for _, res := range s.report.Results {
		if res.Permission != permission {
			continue
		}
		if res.Outcome.String() != outcome {
			return fmt.Errorf("expected %s to be %s, got %s", permission, outcome, res.Outcome)
		}
		return nil
	}
	return fmt.Errorf("no result for %s", permission)
}

func (s *StepsContext) theAuditLogShouldContain(fragment string) error {
	if !strings.Contains(s.audit.String(), fragment) {
		return fmt.Errorf("expected audit log to contain %q:\n%s", fragment, s.audit.String())
	}
	return nil
}

func (s *StepsContext) theAccessLogShouldRecord(fragment string) error {
	if !strings.Contains(s.okapi.AccessLog.String(), fragment) {
		return fmt.Errorf("expected access log to contain %q:\n%s", fragment, s.okapi.AccessLog.String())
	}
	return nil
}

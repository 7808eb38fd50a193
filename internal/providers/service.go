package providers

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	dserrors "github.com/systmms/kapsel/internal/errors"
	"github.com/systmms/kapsel/internal/logging"
	"github.com/systmms/kapsel/pkg/requirement"
)

// ServiceLookup resolves a service type by name.
type ServiceLookup func(name string) (ServiceType, bool)

// ServiceProvider locates, and in development starts, network services.
type ServiceProvider struct {
	lookup ServiceLookup
	logger *logging.Logger
}

// NewServiceProvider creates the provider.
func NewServiceProvider(lookup ServiceLookup, logger *logging.Logger) *ServiceProvider {
	return &ServiceProvider{lookup: lookup, logger: orDiscard(logger)}
}

// Name implements requirement.Provider.
func (p *ServiceProvider) Name() string {
	return string(requirement.KindService)
}

func (p *ServiceProvider) serviceType(req *requirement.Requirement) (ServiceType, error) {
	st, ok := p.lookup(req.ServiceType())
	if !ok {
		return ServiceType{}, fmt.Errorf("Unknown service type '%s' for %s.", req.ServiceType(), req.EnvVar())
	}
	return st, nil
}

func (p *ServiceProvider) ping(ctx context.Context, st ServiceType, serviceURL string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()
	return st.Ping(ctx, serviceURL)
}

// Check implements requirement.Provider.
func (p *ServiceProvider) Check(ctx context.Context, req *requirement.Requirement, in requirement.CheckInput) *requirement.Status {
	st, err := p.serviceType(req)
	if err != nil {
		return requirement.NewStatus(req, false, err.Error()).WithErrors(err.Error())
	}

	serviceURL, ok := in.Environ.Lookup(req.EnvVar())
	if !ok {
		return requirement.NewStatus(req, false, notSetDescription(req.EnvVar()))
	}

	shown := redactURL(serviceURL)
	if err := p.ping(ctx, st, serviceURL); err != nil {
		return requirement.NewStatus(req, false,
			fmt.Sprintf("Could not connect to %s server at %s.", st.Name, shown)).
			WithLogs(err.Error())
	}
	return requirement.NewStatus(req, true, fmt.Sprintf("Using %s server at %s", st.Name, shown))
}

// Fix implements requirement.Provider.
//
// A URL already in the environment is never replaced. Otherwise the saved
// URL is reused, then the configured or type default URL is tried, and in
// development mode a local instance is launched.
func (p *ServiceProvider) Fix(ctx context.Context, req *requirement.Requirement, fc *requirement.FixContext) (*requirement.FixResult, error) {
	result := &requirement.FixResult{}
	name := req.EnvVar()
	env := fc.Input.Environ
	state := fc.Input.State

	st, err := p.serviceType(req)
	if err != nil {
		result.Errorf("%s", err.Error())
		return result, nil
	}

	if current, ok := env.Lookup(name); ok {
		result.Errorf("%s is set to %s but the server is not reachable.", name, redactURL(current))
		return result, nil
	}

	runState := state.ServiceRunState(name)
	if saved, ok := runState["url"].(string); ok && saved != "" {
		if fc.Mode == requirement.ProvideCheck || p.ping(ctx, st, saved) == nil {
			env[name] = saved
			return result, nil
		}
		result.Logf("Saved URL %s for %s is not reachable.", redactURL(saved), name)
	}

	if fc.Mode == requirement.ProvideCheck {
		return result, nil
	}

	if canAsk(fc) {
		answer, err := p.askURL(fc, req, st)
		if err != nil {
			return result, err
		}
		p.remember(state, name, answer, nil)
		env[name] = answer
		return result, nil
	}

	for _, candidate := range candidateURLs(req, st) {
		if err := p.ping(ctx, st, candidate); err != nil {
			result.Logf("No %s server at %s: %v", st.Name, redactURL(candidate), err)
			continue
		}
		p.remember(state, name, candidate, nil)
		env[name] = candidate
		result.Logf("Using %s server at %s.", st.Name, redactURL(candidate))
		return result, nil
	}

	if fc.Mode == requirement.ProvideDevelopment && st.Launcher != nil {
		workDir := filepath.Join(fc.Input.ProjectDir, "services", name)
		p.logger.Debug("Launching %s for %s in %s", st.Name, name, workDir)
		serviceURL, launched, err := st.Launcher.Launch(ctx, workDir)
		if err != nil {
			result.Errorf("%s", dserrors.DescribeProviderFailure(p.Name(), err))
			return result, nil
		}
		p.remember(state, name, serviceURL, launched)
		env[name] = serviceURL
		result.Logf("Started %s server at %s.", st.Name, serviceURL)
		return result, nil
	}

	result.NeedsInput = true
	return result, nil
}

func (p *ServiceProvider) askURL(fc *requirement.FixContext, req *requirement.Requirement, st ServiceType) (string, error) {
	def := st.DefaultURL
	if v, ok := req.DefaultValue(); ok && v != "" {
		def = v
	}
	prompt := fmt.Sprintf("URL for %s [%s]: ", req.EnvVar(), def)
	for {
		answer, err := fc.Prompter.Ask(prompt)
		if err != nil {
			return "", err
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			answer = def
		}
		if st.ValidURL(answer) {
			return answer, nil
		}
		fc.Prompter.Tell(fmt.Sprintf("Please enter a URL starting with %s://.", st.Schemes[0]))
	}
}

func (p *ServiceProvider) remember(state requirement.LocalState, name, serviceURL string, launched map[string]interface{}) {
	runState := map[string]interface{}{"url": serviceURL}
	for k, v := range launched {
		runState[k] = v
	}
	state.SetServiceRunState(name, runState)
}

// Clean implements requirement.Cleaner: a launched instance is stopped and
// the saved URL forgotten.
func (p *ServiceProvider) Clean(ctx context.Context, req *requirement.Requirement, fc *requirement.FixContext) *requirement.FixResult {
	result := &requirement.FixResult{}
	name := req.EnvVar()
	runState := fc.Input.State.ServiceRunState(name)
	if len(runState) == 0 {
		return result
	}

	if _, launched := runState["pidfile"]; launched {
		st, err := p.serviceType(req)
		if err == nil && st.Launcher != nil {
			if err := st.Launcher.Stop(ctx, runState); err != nil {
				result.Errorf("Failed to stop %s for %s: %v", st.Name, name, err)
				return result
			}
			result.Logf("Stopped %s server for %s.", st.Name, name)
		}
	}
	fc.Input.State.SetServiceRunState(name, nil)
	return result
}

func candidateURLs(req *requirement.Requirement, st ServiceType) []string {
	var urls []string
	if v, ok := req.DefaultValue(); ok && v != "" {
		urls = append(urls, v)
	}
	if st.DefaultURL != "" && (len(urls) == 0 || urls[0] != st.DefaultURL) {
		urls = append(urls, st.DefaultURL)
	}
	return urls
}

// redactURL hides the password of a service URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}

package authz

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/squawkbus/squawkbus/internal/wire"
)

// fileAuthorization is the YAML shape of one entry nested under a user
// pattern and topic pattern key in the authorization config file:
//
//	<user-pattern>:
//	  <topic-pattern>:
//	    entitlements: [1, 2]
//	    roles: ["subscriber", "publisher"]
type fileAuthorization struct {
	Entitlements []int32  `yaml:"entitlements"`
	Roles        []string `yaml:"roles"`
}

func parseRole(name string) (Role, error) {
	switch name {
	case "subscriber":
		return RoleSubscriber, nil
	case "publisher":
		return RolePublisher, nil
	default:
		return 0, fmt.Errorf("authz: unknown role %q", name)
	}
}

func parseRoles(names []string) (Role, error) {
	var roles Role
	for _, name := range names {
		r, err := parseRole(name)
		if err != nil {
			return 0, err
		}
		roles |= r
	}
	return roles, nil
}

// LoadSpecs reads additional AuthorizationSpecs from a YAML file at path and
// appends them to base. If path is empty and base is also empty, it returns
// DefaultPermitAllSpecs so an unconfigured broker remains usable.
func LoadSpecs(path string, base []AuthorizationSpec) ([]AuthorizationSpec, error) {
	specs := make([]AuthorizationSpec, len(base))
	copy(specs, base)

	if path == "" {
		if len(specs) == 0 {
			return DefaultPermitAllSpecs(), nil
		}
		return specs, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("authz: opening %s: %w", path, err)
	}
	defer f.Close()

	var document map[string]map[string]fileAuthorization
	if err := yaml.NewDecoder(f).Decode(&document); err != nil {
		return nil, fmt.Errorf("authz: parsing %s: %w", path, err)
	}

	for userPattern, topicAuthorizations := range document {
		userRegexp, err := regexp.Compile(userPattern)
		if err != nil {
			return nil, fmt.Errorf("authz: invalid user pattern %q: %w", userPattern, err)
		}
		for topicPattern, authorization := range topicAuthorizations {
			topicRegexp, err := regexp.Compile(topicPattern)
			if err != nil {
				return nil, fmt.Errorf("authz: invalid topic pattern %q: %w", topicPattern, err)
			}
			roles, err := parseRoles(authorization.Roles)
			if err != nil {
				return nil, err
			}
			specs = append(specs, AuthorizationSpec{
				UserPattern:  userRegexp,
				TopicPattern: topicRegexp,
				Entitlements: wire.NewEntitlementSet(authorization.Entitlements...),
				Roles:        roles,
			})
		}
	}

	return specs, nil
}

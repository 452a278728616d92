// Package taxonomy defines the closed vocabularies used to categorize CI
// failures: error categories, failure types, and severities. Free-form
// classifier output is mapped onto these vocabularies by the Normalize
// functions; nothing outside this package should store an unnormalized value.
package taxonomy

// ErrorCategory is the technical category of an error.
type ErrorCategory string

const (
	CategoryInfrastructure ErrorCategory = "infrastructure"
	CategoryNetwork        ErrorCategory = "network"
	CategoryResource       ErrorCategory = "resource"
	CategoryTimeout        ErrorCategory = "timeout"

	CategoryCompilation ErrorCategory = "compilation"
	CategorySyntax      ErrorCategory = "syntax"
	CategoryDependency  ErrorCategory = "dependency"

	CategoryRuntime   ErrorCategory = "runtime"
	CategoryCrash     ErrorCategory = "crash"
	CategoryAssertion ErrorCategory = "assertion"

	CategoryTestFailure ErrorCategory = "test_failure"
	CategoryFlakyTest   ErrorCategory = "flaky_test"

	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryPermissions    ErrorCategory = "permissions"
	CategoryAuthentication ErrorCategory = "authentication"

	CategoryDeployment ErrorCategory = "deployment"
	CategoryContainer  ErrorCategory = "container"

	CategoryDatabase       ErrorCategory = "database"
	CategoryDataValidation ErrorCategory = "data_validation"

	CategoryUnknown ErrorCategory = "unknown"
	CategoryOther   ErrorCategory = "other"
)

// FailureType is the high-level category of what went wrong in a step.
type FailureType string

const (
	FailureBuild            FailureType = "build_failure"
	FailureCompilationError FailureType = "compilation_error"
	FailureDependencyError  FailureType = "dependency_error"

	FailureUnitTest        FailureType = "unit_test_failure"
	FailureIntegrationTest FailureType = "integration_test_failure"
	FailureE2ETest         FailureType = "e2e_test_failure"
	FailureFlakyTest       FailureType = "flaky_test"

	FailureInfrastructure     FailureType = "infrastructure_failure"
	FailureNetwork            FailureType = "network_failure"
	FailureResourceExhaustion FailureType = "resource_exhaustion"
	FailureTimeout            FailureType = "timeout"

	FailureDeployment FailureType = "deployment_failure"
	FailureContainer  FailureType = "container_failure"
	FailureImagePull  FailureType = "image_pull_failure"

	FailureConfigurationError FailureType = "configuration_error"
	FailureAuthentication     FailureType = "authentication_failure"
	FailurePermissionDenied   FailureType = "permission_denied"

	FailureApplicationCrash FailureType = "application_crash"
	FailureApplicationError FailureType = "application_error"

	FailureUnknown FailureType = "unknown"
	FailureOther   FailureType = "other"
)

// Severity is the impact level of an issue.
type Severity string

const (
	SeverityCritical Severity = "critical" // pipeline completely blocked
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// ErrorCategories lists every canonical error category.
var ErrorCategories = []ErrorCategory{
	CategoryInfrastructure, CategoryNetwork, CategoryResource, CategoryTimeout,
	CategoryCompilation, CategorySyntax, CategoryDependency,
	CategoryRuntime, CategoryCrash, CategoryAssertion,
	CategoryTestFailure, CategoryFlakyTest,
	CategoryConfiguration, CategoryPermissions, CategoryAuthentication,
	CategoryDeployment, CategoryContainer,
	CategoryDatabase, CategoryDataValidation,
	CategoryUnknown, CategoryOther,
}

// FailureTypes lists every canonical failure type.
var FailureTypes = []FailureType{
	FailureBuild, FailureCompilationError, FailureDependencyError,
	FailureUnitTest, FailureIntegrationTest, FailureE2ETest, FailureFlakyTest,
	FailureInfrastructure, FailureNetwork, FailureResourceExhaustion, FailureTimeout,
	FailureDeployment, FailureContainer, FailureImagePull,
	FailureConfigurationError, FailureAuthentication, FailurePermissionDenied,
	FailureApplicationCrash, FailureApplicationError,
	FailureUnknown, FailureOther,
}

// Severities lists every canonical severity, most severe first.
var Severities = []Severity{
	SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo,
}

// Describe returns a human-readable description of the category.
func (c ErrorCategory) Describe() string {
	if d, ok := categoryDescriptions[c]; ok {
		return d
	}
	return "No description available"
}

// Describe returns a human-readable description of the failure type.
func (f FailureType) Describe() string {
	if d, ok := failureTypeDescriptions[f]; ok {
		return d
	}
	return "No description available"
}

var categoryDescriptions = map[ErrorCategory]string{
	CategoryInfrastructure: "Infrastructure and cloud platform issues",
	CategoryNetwork:        "Network connectivity and DNS issues",
	CategoryResource:       "Resource exhaustion (CPU, memory, disk)",
	CategoryTimeout:        "Operations that timed out",
	CategoryCompilation:    "Code compilation failures",
	CategorySyntax:         "Syntax errors in code",
	CategoryDependency:     "Dependency resolution or installation failures",
	CategoryRuntime:        "Runtime execution errors",
	CategoryCrash:          "Application or process crashes",
	CategoryAssertion:      "Assertion failures",
	CategoryTestFailure:    "Test execution failures",
	CategoryFlakyTest:      "Intermittent test failures",
	CategoryConfiguration:  "Configuration or setup errors",
	CategoryPermissions:    "Permission or access control issues",
	CategoryAuthentication: "Authentication failures",
	CategoryDeployment:     "Deployment process failures",
	CategoryContainer:      "Container or orchestration issues",
	CategoryDatabase:       "Database connection or query failures",
	CategoryDataValidation: "Data validation or format issues",
	CategoryUnknown:        "Unknown or unclassified error",
	CategoryOther:          "Other types of errors",
}

var failureTypeDescriptions = map[FailureType]string{
	FailureBuild:              "Build process failed",
	FailureCompilationError:   "Code failed to compile",
	FailureDependencyError:    "Dependency resolution failed",
	FailureUnitTest:           "Unit tests failed",
	FailureIntegrationTest:    "Integration tests failed",
	FailureE2ETest:            "End-to-end tests failed",
	FailureFlakyTest:          "Tests failed intermittently",
	FailureInfrastructure:     "Infrastructure or platform failure",
	FailureNetwork:            "Network connectivity failure",
	FailureResourceExhaustion: "System resources exhausted",
	FailureTimeout:            "Operation timed out",
	FailureDeployment:         "Deployment process failed",
	FailureContainer:          "Container failed to start or run",
	FailureImagePull:          "Failed to pull container image",
	FailureConfigurationError: "Configuration error",
	FailureAuthentication:     "Authentication failed",
	FailurePermissionDenied:   "Permission denied",
	FailureApplicationCrash:   "Application crashed",
	FailureApplicationError:   "Application error",
	FailureUnknown:            "Unknown failure type",
	FailureOther:              "Other failure type",
}

package taxonomy

// Alias tables for migrating free-form classifier output onto the canonical
// vocabularies. Order matters: the substring fallback scans these top to
// bottom and the first hit wins.

var errorCategoryAliases = []alias[ErrorCategory]{
	// Infrastructure variations
	{"infrastructure/resource_management", CategoryInfrastructure},
	{"infrastructure", CategoryInfrastructure},
	{"infrastructure_or_deployment", CategoryInfrastructure},
	{"infra", CategoryInfrastructure},
	// Network variations
	{"network", CategoryNetwork},
	{"networking", CategoryNetwork},
	{"dns", CategoryNetwork},
	{"connection", CategoryNetwork},
	// Timeout variations
	{"timeout", CategoryTimeout},
	{"time_out", CategoryTimeout},
	{"timed_out", CategoryTimeout},
	// Test variations
	{"test", CategoryTestFailure},
	{"test_failure", CategoryTestFailure},
	{"testing", CategoryTestFailure},
	{"flaky", CategoryFlakyTest},
	{"flaky_test", CategoryFlakyTest},
	// Build/compilation variations
	{"build", CategoryCompilation},
	{"compilation", CategoryCompilation},
	{"compile", CategoryCompilation},
	{"syntax", CategorySyntax},
	// Runtime variations
	{"runtime", CategoryRuntime},
	{"execution", CategoryRuntime},
	{"crash", CategoryCrash},
	// Resource variations
	{"resource", CategoryResource},
	{"resource_exhaustion", CategoryResource},
	{"memory", CategoryResource},
	{"disk", CategoryResource},
	{"cpu", CategoryResource},
	// Configuration variations
	{"config", CategoryConfiguration},
	{"configuration", CategoryConfiguration},
	{"misconfiguration", CategoryConfiguration},
	// Dependency variations
	{"dependency", CategoryDependency},
	{"dependencies", CategoryDependency},
	{"package", CategoryDependency},
	// Deployment variations
	{"deployment", CategoryDeployment},
	{"deploy", CategoryDeployment},
	// Container variations
	{"container", CategoryContainer},
	{"docker", CategoryContainer},
	{"pod", CategoryContainer},
	// Synchronization
	{"synchronization", CategoryRuntime},
	{"synchronization_failure", CategoryRuntime},
	{"sync", CategoryRuntime},
	// Authentication
	{"auth", CategoryAuthentication},
	{"authentication", CategoryAuthentication},
	{"permission", CategoryPermissions},
	{"permissions", CategoryPermissions},
	// Database
	{"database", CategoryDatabase},
	{"db", CategoryDatabase},
	{"sql", CategoryDatabase},
	// Unknown
	{"unknown", CategoryUnknown},
	{"other", CategoryOther},
}

var failureTypeAliases = []alias[FailureType]{
	// Infrastructure variations
	{"infrastructure", FailureInfrastructure},
	{"infra", FailureInfrastructure},
	{"infrastructure_failure", FailureInfrastructure},
	// Network variations
	{"network", FailureNetwork},
	{"network_failure", FailureNetwork},
	{"dns_resolution_failure", FailureNetwork},
	{"dns", FailureNetwork},
	{"connection_failure", FailureNetwork},
	// Timeout variations
	{"timeout", FailureTimeout},
	{"time_out", FailureTimeout},
	{"timed_out", FailureTimeout},
	// Build variations
	{"build", FailureBuild},
	{"build_failure", FailureBuild},
	{"compilation", FailureCompilationError},
	{"compilation_error", FailureCompilationError},
	{"compile_error", FailureCompilationError},
	// Test variations
	{"test", FailureUnitTest},
	{"test_failure", FailureUnitTest},
	{"unit_test", FailureUnitTest},
	{"integration_test", FailureIntegrationTest},
	{"e2e", FailureE2ETest},
	{"e2e_test", FailureE2ETest},
	{"flaky", FailureFlakyTest},
	{"flaky_test", FailureFlakyTest},
	// Resource variations
	{"resource", FailureResourceExhaustion},
	{"resource_exhaustion", FailureResourceExhaustion},
	{"resource_not_found", FailureResourceExhaustion},
	{"oom", FailureResourceExhaustion},
	{"out_of_memory", FailureResourceExhaustion},
	// Deployment variations
	{"deployment", FailureDeployment},
	{"deployment_failure", FailureDeployment},
	{"deploy_failure", FailureDeployment},
	// Container variations
	{"container", FailureContainer},
	{"container_failure", FailureContainer},
	{"pod_failure", FailureContainer},
	{"image_pull", FailureImagePull},
	// Application variations
	{"application", FailureApplicationError},
	{"application_error", FailureApplicationError},
	{"application_degraded", FailureApplicationError},
	{"app_error", FailureApplicationError},
	{"crash", FailureApplicationCrash},
	{"application_crash", FailureApplicationCrash},
	// Configuration variations
	{"config", FailureConfigurationError},
	{"configuration", FailureConfigurationError},
	{"configuration_error", FailureConfigurationError},
	{"misconfiguration", FailureConfigurationError},
	// Authentication variations
	{"auth", FailureAuthentication},
	{"authentication", FailureAuthentication},
	{"authentication_failure", FailureAuthentication},
	{"permission", FailurePermissionDenied},
	{"permission_denied", FailurePermissionDenied},
	// Dependency variations
	{"dependency", FailureDependencyError},
	{"dependency_error", FailureDependencyError},
	{"dependencies", FailureDependencyError},
	// Unknown
	{"unknown", FailureUnknown},
	{"other", FailureOther},
}

var severityAliases = []alias[Severity]{
	{"critical", SeverityCritical},
	{"high", SeverityHigh},
	{"medium", SeverityMedium},
	{"med", SeverityMedium},
	{"moderate", SeverityMedium},
	{"low", SeverityLow},
	{"info", SeverityInfo},
	{"informational", SeverityInfo},
}

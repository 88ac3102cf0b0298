// Package testing provides test utilities, builders, and fixtures for unit tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder for creating test configurations
//   - SimFixture: A seeded simulated control plane for common scenarios
//   - MockSession / MockDialer: testify mocks of the control-plane session
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithBackend("sim").
//	    WithTimeouts(testing.FastTimeouts()).
//	    Build()
//
//	fx := testing.NewSimFixture()
//	orch := provisioning.New(fx.Sim, provisioning.WithTimeouts(testing.FastTimeouts()))
package testing

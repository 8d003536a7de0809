// Package alerts implements the rule evaluation engine and webhook delivery
// for fleet alerting. Rules are evaluated against every stored packet, keyed
// per vehicle; webhooks are delivered to Teams, Slack, or generic HTTP targets
// when a rule fires or resolves.
package alerts

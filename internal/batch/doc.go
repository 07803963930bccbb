// Package batch scrapes a fixed list of URLs on a bounded worker pool.
//
// Results are collected in completion order. A URL that fails is reported
// alongside the successes and never fails the batch; callers that want
// pages as they finish use ProcessWithCallback.
package batch

// Package models defines the domain entities shared across the syncify
// resolution and reconciliation pipeline.
//
// The package contains three categories of types:
//
// 1. Resolution inputs and outputs:
//   - [LocalEntry] : One playlist line or file path to resolve
//   - [Candidate] : A catalog search hit, not yet chosen
//   - [MatchResult] : A scored candidate for a local entry
//
// 2. Persistent records:
//   - [Decision] : An accept/reject outcome for an entry+candidate pair
//   - [LearnedPattern] : A mined artist-name correction
//   - [SyncState] : The last known resolved state of one local playlist
//
// 3. Reconciliation and review:
//   - [RemotePlaylist] : A playlist hosted by the catalog service
//   - [ReviewRequest] / [ReviewResponse] : A pending manual decision
//     yielded to the driver instead of blocking on terminal I/O
package models

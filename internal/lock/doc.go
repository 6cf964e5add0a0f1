// Package lock defines the smart lock's wire vocabulary: lock states,
// lock actions, action triggers, door sensor states and the CSV-encoded
// action event, with parsers for each payload format.
//
// Payloads for states and actions are plain decimal integers. Action
// events are comma-separated: "action,trigger,authId,codeId,autoUnlock".
// Unknown state values parse to the undefined sentinel rather than an
// error so that newer lock firmware never breaks the feed.
package lock

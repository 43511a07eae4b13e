// Package mobilelink is a polling client for the Generac Mobile Link web
// dashboard. It drives the hosted Azure AD B2C sign-in handshake to obtain
// session cookies, classifies the noisy HTML/JSON responses of that surface
// into a closed error taxonomy, and normalizes propane tank apparatus
// records into a stable telemetry model.
package mobilelink

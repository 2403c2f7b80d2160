// Package hue drives lights of a Philips Hue bridge through huego.
package hue

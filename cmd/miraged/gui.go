// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"errors"
	"fmt"

	"github.com/gobuffalo/packr"
	"github.com/gotk3/gotk3/glib"
	"github.com/gotk3/gotk3/gtk"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/mirage/core/cascade"
)

// Clip planes the schedule preview is computed for, same as the
// renderer uses.
const (
	previewNear = 0.5
	previewFar  = 48.0
)

// Global variables for GTK and resources
var (
	Builder         *gtk.Builder
	StaticResources packr.Box
)

func init() {
	StaticResources = packr.NewBox("./resources")
}

func buildInterface() (*gtk.Application, error) {
	app, err := gtk.ApplicationNew("org.devblok.miraged", glib.APPLICATION_FLAGS_NONE)
	if err != nil {
		return nil, err
	}

	app.Connect("startup", func() {
		log.Info("Application starting")
	})

	app.Connect("activate", func() {
		log.Info("Application activating")

		resource, err := StaticResources.FindString("miraged.glade")
		if err != nil {
			log.Fatal(err)
		}

		builder, err := gtk.BuilderNew()
		if err != nil {
			log.Fatal(err)
		}
		if err := builder.AddFromString(resource); err != nil {
			log.Fatal(err)
		}

		Builder = builder

		scale, err := scaleFromBuilder(builder, "lambdaScale")
		if err != nil {
			log.Fatal(err)
		}

		splits, err := labelFromBuilder(builder, "splitsLabel")
		if err != nil {
			log.Fatal(err)
		}

		scale.Connect("value-changed", func() {
			splits.SetText(scheduleText(float32(scale.GetValue())))
		})
		splits.SetText(scheduleText(float32(scale.GetValue())))

		obj, err := builder.GetObject("mainWindow")
		if err != nil {
			log.Error(err)
			return
		}

		if win, ok := obj.(*gtk.Window); !ok {
			log.Error(errors.New("failed to cast Object from builder to Window"))
		} else {
			win.SetDefaultSize(420, 240)
			win.ShowAll()
			app.AddWindow(win)
		}
	})

	app.Connect("shutdown", func() {
		log.Info("Application shutting down")
	})
	return app, nil
}

func scaleFromBuilder(builder *gtk.Builder, name string) (*gtk.Scale, error) {
	obj, err := builder.GetObject(name)
	if err != nil {
		return nil, err
	}
	scale, ok := obj.(*gtk.Scale)
	if !ok {
		return nil, errors.New("object " + name + " is not a Scale")
	}
	return scale, nil
}

func labelFromBuilder(builder *gtk.Builder, name string) (*gtk.Label, error) {
	obj, err := builder.GetObject(name)
	if err != nil {
		return nil, err
	}
	label, ok := obj.(*gtk.Label)
	if !ok {
		return nil, errors.New("object " + name + " is not a Label")
	}
	return label, nil
}

// scheduleText formats the split schedule for a lambda value.
func scheduleText(lambda float32) string {
	fractions := cascade.Splits(previewNear, previewFar, lambda)

	text := fmt.Sprintf("lambda %.2f\n", lambda)
	for i, fraction := range fractions {
		distance := previewNear + fraction*(previewFar-previewNear)
		text += fmt.Sprintf("cascade %d ends at %.2f\n", i, distance)
	}
	return text
}

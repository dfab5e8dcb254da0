package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/onkernel/wdio-native-driver/internal/apparmor"
	"github.com/onkernel/wdio-native-driver/internal/browser"
	"github.com/onkernel/wdio-native-driver/internal/connect"
	"github.com/onkernel/wdio-native-driver/internal/lifecycle"
	"github.com/onkernel/wdio-native-driver/internal/logcapture"
	"github.com/onkernel/wdio-native-driver/internal/options"
	"github.com/onkernel/wdio-native-driver/lib/logger"
)

// service wires a lifecycle.Controller to the chi routes below, holding the
// one Browser façade built per instance once before() has run.
type service struct {
	controller     *lifecycle.Controller
	browsers       map[string]*browser.Browser
	serviceOptions options.ServiceOptions
}

func newService(baseLogger *slog.Logger) *service {
	return &service{
		controller:     lifecycle.NewController(baseLogger),
		browsers:       make(map[string]*browser.Browser),
		serviceOptions: options.Defaults(),
	}
}

type prepareRequest struct {
	ProjectRoots map[string]string      `json:"projectRoots"`
	Apparmor     *apparmorRequest       `json:"apparmor,omitempty"`
	Options      options.ServiceOptions `json:"options,omitempty"`
}

type apparmorRequest struct {
	BinaryPath string `json:"binaryPath"`
	Mode       string `json:"mode"` // "false" | "true" | "sudo"
}

func (s *service) handlePrepare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req prepareRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.controller.OnPrepare(ctx, req.ProjectRoots); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	merged := options.Merge(options.Defaults(), req.Options)
	s.serviceOptions = options.MergeEnv(merged, map[string]string{
		"WDIO_APP_BINARY_PATH": os.Getenv("WDIO_APP_BINARY_PATH"),
		"WDIO_LOG_DIR":         os.Getenv("WDIO_LOG_DIR"),
	})

	if req.Apparmor != nil && req.Apparmor.Mode != string(options.ApparmorOff) && req.Apparmor.Mode != "" {
		enabled, err := apparmor.RestrictionEnabled()
		if err != nil {
			logger.FromContext(ctx).Warn("apparmor restriction probe failed", "err", err)
		} else if enabled {
			path, err := apparmor.Install(req.Apparmor.BinaryPath, apparmor.Mode(req.Apparmor.Mode))
			if err != nil {
				logger.FromContext(ctx).Warn("apparmor install failed, continuing without profile", "err", err)
			} else {
				s.controller.SetApparmorProfilePath(path)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"state": s.controller.State().String()})
}

type beforeRequest struct {
	Instances []instanceRequest `json:"instances"`
}

type instanceRequest struct {
	Name          string                 `json:"name"`
	Framework     string                 `json:"framework"` // "electron" | "tauri"
	BinaryPath    string                 `json:"binaryPath"`
	CDPPort       int                    `json:"cdpPort,omitempty"`       // Electron
	TauriCallback string                 `json:"tauriCallback,omitempty"` // Tauri: HTTPEvaluator URL
	Windows       []string               `json:"windows,omitempty"`       // Tauri: static window handles
	Options       options.ServiceOptions `json:"options,omitempty"`       // capability-level overrides
}

func (s *service) handleBefore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req beforeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cfgs := make([]lifecycle.InstanceConfig, 0, len(req.Instances))
	electronTargets := make(map[string]connect.ElectronTarget)
	tauriTargets := make(map[string]connect.TauriTarget)
	for _, inst := range req.Instances {
		framework := lifecycle.FrameworkElectron
		if inst.Framework == "tauri" {
			framework = lifecycle.FrameworkTauri
			tauriTargets[inst.Name] = connect.TauriTarget{CallbackURL: inst.TauriCallback, Windows: inst.Windows}
		} else {
			electronTargets[inst.Name] = connect.ElectronTarget{CDPPort: inst.CDPPort}
		}
		cfgs = append(cfgs, lifecycle.InstanceConfig{
			Name:       inst.Name,
			Framework:  framework,
			BinaryPath: inst.BinaryPath,
			Options:    options.Merge(s.serviceOptions, inst.Options),
		})
	}

	executors := connect.NewExecutors()
	electronConnect := connect.Electron(logger.FromContext(ctx), electronTargets, executors)
	tauriConnect := connect.Tauri(tauriTargets, executors)

	if err := s.controller.Before(ctx, cfgs, electronConnect, tauriConnect); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	for _, inst := range req.Instances {
		state, ok := s.controller.Instance(inst.Name)
		if !ok {
			continue
		}
		executor, _ := executors.Get(inst.Name)
		deeplinkCapable := state.Framework == lifecycle.FrameworkElectron
		fetchUser := s.userDataFetcher(inst.Name)
		s.browsers[inst.Name] = browser.New(executor, state.MockRegistry, deeplinkCapable, fetchUser, inst.BinaryPath)
	}

	writeJSON(w, http.StatusOK, map[string]string{"state": s.controller.State().String()})
}

// userDataFetcher builds a UserDataFetcher that calls electron.app.getPath
// through the instance's own Browser.execute, per §4.9's single-instance
// targeting rule.
func (s *service) userDataFetcher(instanceName string) browser.UserDataFetcher {
	return func(ctx context.Context) (string, error) {
		b, ok := s.browsers[instanceName]
		if !ok {
			return "", fmt.Errorf("wdio-service: no browser for instance %q yet", instanceName)
		}
		result, err := b.Dispatch(ctx, "execute", []json.RawMessage{json.RawMessage(`"return electron.app.getPath('userData')"`)})
		if err != nil {
			return "", err
		}
		dir, _ := result.(string)
		return dir, nil
	}
}

type consoleForwardRequest struct {
	Method  string `json:"method"`
	Message string `json:"message"`
}

// handleConsoleForward accepts a frontend-shim console call relayed by the
// Tauri JS side (§4.8's "Frontend" source, which has no stdout to tail) and
// funnels it into the instance's LogPipeline alongside the backend/
// main-process/renderer producers.
func (s *service) handleConsoleForward(instanceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, ok := s.controller.Instance(instanceName)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("no instance registered for %q", instanceName))
			return
		}
		var req consoleForwardRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		logcapture.ForwardFrontendCall(req.Method, req.Message, state.LogPipeline, instanceName)
		writeJSON(w, http.StatusOK, map[string]string{"state": "ok"})
	}
}

func (s *service) handleBeforeTest(w http.ResponseWriter, r *http.Request) {
	var opts options.ServiceOptions
	if !decodeJSON(w, r, &opts) {
		return
	}
	s.controller.BeforeTest(opts)
	writeJSON(w, http.StatusOK, map[string]string{"state": s.controller.State().String()})
}

func (s *service) handleAfter(w http.ResponseWriter, r *http.Request) {
	s.controller.After(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"state": s.controller.State().String()})
}

type completeRequest struct {
	RemoveApparmorProfile bool `json:"removeApparmorProfile"`
}

func (s *service) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var removeProfile func(string) error
	if req.RemoveApparmorProfile {
		removeProfile = func(path string) error { return apparmor.Remove(path, apparmor.ModeOn) }
	}
	s.controller.OnComplete(r.Context(), nil, removeProfile)
	writeJSON(w, http.StatusOK, map[string]string{"state": s.controller.State().String()})
}

// handleDispatch runs one registered Browser command for an instance, the
// HTTP front door for §6's user-facing command set.
func (s *service) handleDispatch(instanceName, command string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, ok := s.browsers[instanceName]
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("no browser registered for instance %q", instanceName))
			return
		}
		var args []json.RawMessage
		if !decodeJSON(w, r, &args) {
			return
		}
		result, err := b.Dispatch(r.Context(), command, args)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": result})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

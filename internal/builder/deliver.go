// Copyright 2022 bytetrade
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package builder

import (
	"bytes"
	"context"
	"fmt"

	"github.com/golang/glog"

	"applet/internal/models"
	"applet/internal/repository"
	"applet/pkg/utils"
)

// Delivery says where a finished package or solution goes.
type Delivery struct {
	Output        string
	Install       bool
	Publish       bool
	PublishServer string
}

// Deliverer writes, installs and publishes finished artifacts.
type Deliverer struct {
	Installer repository.Installer
	Publisher repository.Publisher
}

// Deliver writes the artifact to Output atomically, installs it when asked, then publishes.
// Publish failures are logged and do not fail the delivery.
func (d *Deliverer) Deliver(ctx context.Context, a models.Artifact, opts Delivery) error {
	meta := a.Metadata()
	var data []byte
	if opts.Output != "" {
		var err error
		if data, err = a.Marshal(); err != nil {
			return err
		}
		dg, n, err := utils.AtomicWriteFile(opts.Output, bytes.NewReader(data), 0o644)
		if err != nil {
			return fmt.Errorf("write %s: %w", opts.Output, err)
		}
		glog.Infof("wrote %s %s to %s (%d bytes, %s)", meta.ID, meta.Version, opts.Output, n, dg)
	}

	if opts.Install {
		if d.Installer == nil {
			return fmt.Errorf("install requested but no local cache configured")
		}
		if err := d.Installer.Install(ctx, a); err != nil {
			return fmt.Errorf("install %s: %w", meta.ID, err)
		}
	}

	if opts.Publish {
		switch {
		case d.Publisher == nil:
			glog.Warningf("publish %s skipped: no publisher configured", meta.ID)
		case opts.PublishServer == "":
			glog.Warningf("publish %s skipped: no publish server", meta.ID)
		default:
			if err := d.Publisher.Publish(ctx, opts.PublishServer, a); err != nil {
				glog.Warningf("publish %s %s to %s err:%s", meta.ID, meta.Version, opts.PublishServer, err)
			}
		}
	}
	return nil
}

package collector

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// Filesystems that do not represent local storage. FUSE types are matched by
// prefix in skipFilesystem, except fuseblk which backs real block devices.
var (
	virtualFS = []string{
		"autofs", "binfmt_misc", "bpf", "cgroup", "cgroup2", "configfs",
		"debugfs", "devfs", "devtmpfs", "efivarfs", "fusectl", "hugetlbfs",
		"mqueue", "nsfs", "nullfs", "overlay", "proc", "procfs", "pstore",
		"ramfs", "securityfs", "squashfs", "sysfs", "tmpfs", "tracefs",
	}
	remoteFS = []string{
		"9p", "afs", "ceph", "cifs", "davfs2", "glusterfs", "gpfs", "lustre",
		"ncpfs", "nfs", "nfs4", "pvfs2", "smbfs",
	}
	skippedFS = func() map[string]struct{} {
		m := make(map[string]struct{}, len(virtualFS)+len(remoteFS))
		for _, fs := range append(append([]string{}, virtualFS...), remoteFS...) {
			m[fs] = struct{}{}
		}
		return m
	}()
)

func skipFilesystem(fstype string) bool {
	if _, ok := skippedFS[fstype]; ok {
		return true
	}
	return strings.HasPrefix(fstype, "fuse.")
}

// isSystemMount reports macOS system volumes, which mirror the root volume.
func isSystemMount(mount string) bool {
	return strings.HasPrefix(mount, "/System/Volumes/") || strings.HasPrefix(mount, "/private/var/vm")
}

// primaryMounts are checked in order when choosing the volume reported as
// the primary disk.
var primaryMounts = []string{"/", "C:", `C:\`}

// Disks returns usage for local volumes with a non-zero size. Partitions
// whose usage cannot be read are left out.
func (h *PsutilHost) Disks(ctx context.Context) ([]models.DiskInfo, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}

	results := make([]models.DiskInfo, 0, len(partitions))
	for _, p := range partitions {
		if skipFilesystem(p.Fstype) || isSystemMount(p.Mountpoint) {
			continue
		}
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			h.logger.Debug("Volume usage unavailable", zap.String("mount", p.Mountpoint), zap.Error(err))
			continue
		}
		if usage.Total == 0 {
			continue
		}
		results = append(results, models.DiskInfo{
			Mount:   p.Mountpoint,
			Fs:      p.Fstype,
			Total:   usage.Total,
			Used:    usage.Used,
			Free:    usage.Free,
			Percent: clampPercent(usage.UsedPercent),
		})
	}

	return results, nil
}

// primaryDisk returns the root/system volume if present, otherwise the first
// one. It returns nil for an empty list.
func primaryDisk(disks []models.DiskInfo) *models.DiskInfo {
	if len(disks) == 0 {
		return nil
	}
	for _, mount := range primaryMounts {
		for i := range disks {
			if strings.EqualFold(disks[i].Mount, mount) {
				d := disks[i]
				return &d
			}
		}
	}
	d := disks[0]
	return &d
}

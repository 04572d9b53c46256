package spooldir

import (
	"os"
	"syscall"
)

//Identify names a file by device and inode so renames keep its progress
type Identify struct {
	Device uint64
	Inode  uint64
}

func convertPathToIdentify(filePath string) (Identify, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return Identify{}, err
	}
	return convertStatToIdentify(info.Sys().(*syscall.Stat_t)), nil
}

func convertStatToIdentify(stat *syscall.Stat_t) Identify {
	return Identify{Device: uint64(stat.Dev), Inode: stat.Ino}
}
